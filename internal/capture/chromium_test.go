package capture

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestOptionsNormalize(t *testing.T) {
	o := Options{URL: "http://127.0.0.1:8080/dial.svg", OutputPath: "dial.png"}
	if err := o.normalize(); err != nil {
		t.Fatal(err)
	}
	if o.Width != DefaultWidth || o.Height != DefaultHeight || o.Timeout != 30*time.Second {
		t.Errorf("normalized = %+v", o)
	}
}

func TestDialPNGRequiresURLAndOutput(t *testing.T) {
	err := DialPNG(context.Background(), Options{OutputPath: "x.png"})
	if err == nil || !strings.Contains(err.Error(), "URL") {
		t.Errorf("err = %v", err)
	}
	err = DialPNG(context.Background(), Options{URL: "http://example.com"})
	if err == nil || !strings.Contains(err.Error(), "OutputPath") {
		t.Errorf("err = %v", err)
	}
}
