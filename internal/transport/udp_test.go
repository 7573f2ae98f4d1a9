package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dustdds-go/dds/internal/guid"
)

func TestUDPTransportSendRecvRoundtrip(t *testing.T) {
	a, err := NewUDPTransport(guid.NewUDPv4Locator(net.ParseIP("127.0.0.1"), 0), nil)
	if err != nil {
		t.Fatalf("NewUDPTransport(a) error = %v", err)
	}
	defer a.Close()

	b, err := NewUDPTransport(guid.NewUDPv4Locator(net.ParseIP("127.0.0.1"), 0), nil)
	if err != nil {
		t.Fatalf("NewUDPTransport(b) error = %v", err)
	}
	defer b.Close()

	payload := []byte("RTPS")
	if err := a.Send(context.Background(), b.DefaultUnicastLocator(), payload); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case dgram := <-b.Recv():
		if string(dgram.Payload) != "RTPS" {
			t.Fatalf("Payload = %q, want RTPS", dgram.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for datagram")
	}
}

func TestUDPTransportDefaultUnicastLocatorHasBoundPort(t *testing.T) {
	tr, err := NewUDPTransport(guid.NewUDPv4Locator(net.ParseIP("127.0.0.1"), 0), nil)
	if err != nil {
		t.Fatalf("NewUDPTransport() error = %v", err)
	}
	defer tr.Close()

	if tr.DefaultUnicastLocator().Port == 0 {
		t.Fatal("DefaultUnicastLocator().Port = 0, want ephemeral port resolved after bind")
	}
}

func TestUDPTransportCloseIsIdempotent(t *testing.T) {
	tr, err := NewUDPTransport(guid.NewUDPv4Locator(net.ParseIP("127.0.0.1"), 0), nil)
	if err != nil {
		t.Fatalf("NewUDPTransport() error = %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}
