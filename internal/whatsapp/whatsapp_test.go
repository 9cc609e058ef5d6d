package whatsapp

import (
	"context"
	"testing"
)

func TestMockClientSendMessage(t *testing.T) {
	client := NewMockClient()
	if err := client.SendMessage(context.Background(), "15551234567", "hello"); err != nil {
		t.Errorf("MockClient SendMessage returned error: %v", err)
	}
}

func TestClientSendMessageValidation(t *testing.T) {
	client := &Client{}
	if err := client.SendMessage(context.Background(), "15551234567", "hello"); err == nil {
		t.Error("expected error for uninitialized client")
	}
}

func TestOptions(t *testing.T) {
	var cfg Opts
	for _, opt := range []Option{WithDBDSN("file:wa.db"), WithQRCodeOutput("/tmp/qr.txt"), WithNumericCode()} {
		opt(&cfg)
	}
	if cfg.DBDSN != "file:wa.db" || cfg.QRPath != "/tmp/qr.txt" || !cfg.NumericCode {
		t.Errorf("options not applied: %+v", cfg)
	}
}
