package resolver

import (
	"net"
	"testing"

	"github.com/miekg/dns"
)

func TestBuildQuerySetsIDAndQuestion(t *testing.T) {
	packed, err := BuildQuery(0x1234, "example.com")
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}

	msg := new(dns.Msg)
	if err := msg.Unpack(packed); err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if msg.Id != 0x1234 {
		t.Fatalf("Id = %d, want 0x1234", msg.Id)
	}
	if len(msg.Question) != 1 || msg.Question[0].Name != "example.com." || msg.Question[0].Qtype != dns.TypeA {
		t.Fatalf("question = %+v", msg.Question)
	}
	if !msg.RecursionDesired {
		t.Fatal("RecursionDesired = false, want true")
	}
}

func TestParseResponseReturnsFirstARecord(t *testing.T) {
	resp := new(dns.Msg)
	resp.Id = 0xabcd
	resp.Answer = []dns.RR{
		&dns.A{
			Hdr: dns.RR_Header{Name: "example.com.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
			A:   net.IPv4(93, 184, 216, 34),
		},
	}
	packed, err := resp.Pack()
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	id, ip, err := ParseResponse(packed)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if id != 0xabcd {
		t.Fatalf("id = %#x, want 0xabcd", id)
	}
	if ip != "93.184.216.34" {
		t.Fatalf("ip = %s, want 93.184.216.34", ip)
	}
}

func TestParseResponseNoAnswer(t *testing.T) {
	resp := new(dns.Msg)
	resp.Id = 0x01
	packed, err := resp.Pack()
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	id, _, err := ParseResponse(packed)
	if err != ErrNoAnswer {
		t.Fatalf("err = %v, want ErrNoAnswer", err)
	}
	if id != 0x01 {
		t.Fatalf("id = %#x, want 0x01 even on error", id)
	}
}
