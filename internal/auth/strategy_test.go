package auth

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"socks5guard/internal/domain"
)

// loopback is a single buffer satisfying io.ReadWriter for strategies
// that only write their method reply and never read further.
type loopback struct {
	bytes.Buffer
}

func TestNoAuthAccepts(t *testing.T) {
	var lb loopback
	outcome, err := NoAuth{}.Authenticate(&lb)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcome.Accepted {
		t.Fatalf("outcome.Accepted = false, want true")
	}
	if got := lb.Bytes(); !bytes.Equal(got, []byte{0x05, 0x00}) {
		t.Fatalf("wrote %v, want [5 0]", got)
	}
}

func TestGSSAPIRefuseAlwaysRejects(t *testing.T) {
	var lb loopback
	outcome, err := GSSAPIRefuse{}.Authenticate(&lb)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Accepted {
		t.Fatalf("outcome.Accepted = true, want false")
	}
	if got := lb.Bytes(); !bytes.Equal(got, []byte{0x05, 0x01}) {
		t.Fatalf("wrote %v, want [5 1]", got)
	}
}

func TestUserPassAuthenticate(t *testing.T) {
	cases := []struct {
		name     string
		username string
		password string
		accept   bool
	}{
		{"matching credentials", "alice", "s3cret", true},
		{"wrong password", "alice", "wrong", false},
		{"wrong username", "mallory", "s3cret", false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			server, client := net.Pipe()
			defer server.Close()
			defer client.Close()

			strat := UserPass{Username: "alice", Password: "s3cret"}

			resultCh := make(chan domain.AuthOutcome, 1)
			errCh := make(chan error, 1)
			go func() {
				outcome, err := strat.Authenticate(server)
				resultCh <- outcome
				errCh <- err
			}()

			// Consume the method-select reply the strategy writes first.
			methodReply := make([]byte, 2)
			if _, err := io.ReadFull(client, methodReply); err != nil {
				t.Fatalf("reading method reply: %v", err)
			}

			frame := buildUserPassFrame(c.username, c.password)
			if _, err := client.Write(frame); err != nil {
				t.Fatalf("writing credentials: %v", err)
			}

			statusReply := make([]byte, 2)
			if _, err := io.ReadFull(client, statusReply); err != nil {
				t.Fatalf("reading status reply: %v", err)
			}

			select {
			case outcome := <-resultCh:
				if outcome.Accepted != c.accept {
					t.Fatalf("outcome.Accepted = %v, want %v", outcome.Accepted, c.accept)
				}
			case <-time.After(time.Second):
				t.Fatal("timed out waiting for Authenticate to return")
			}
			if err := <-errCh; err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			wantStatus := byte(1)
			if c.accept {
				wantStatus = 0
			}
			if statusReply[1] != wantStatus {
				t.Fatalf("status byte = %d, want %d", statusReply[1], wantStatus)
			}
		})
	}
}

func buildUserPassFrame(username, password string) []byte {
	frame := []byte{0x01, byte(len(username))}
	frame = append(frame, []byte(username)...)
	frame = append(frame, byte(len(password)))
	frame = append(frame, []byte(password)...)
	return frame
}
