package rawhttp

import (
	"errors"
	"testing"
)

func TestResolveCharset(t *testing.T) {
	tests := []struct {
		head string
		want string
	}{
		{"HTTP/1.1 200 OK\r\nContent-Type: text/html; charset=ISO-8859-1", "ISO-8859-1"},
		{"HTTP/1.1 200 OK\r\nContent-Length: 0", "utf-8"},
		{"HTTP/1.1 200 OK\r\nContent-Type: text/html", "utf-8"},
		{"HTTP/1.1 200 OK\r\nContent-Type: text/html; charset=\"Shift_JIS\"", "Shift_JIS"},
		{"HTTP/1.1 200 OK\r\ncontent-type: text/plain; Charset=windows-1251; format=flowed", "windows-1251"},
		{"HTTP/1.1 200 OK\r\nContent-Type: text/html;charset=\"koi8-r\"; q=1", "koi8-r"},
		{"HTTP/1.1 200 OK\r\nContent-Type: text/html; CHARSET=utf-8\tx", "utf-8"},
		{"HTTP/1.1 200 OK\r\nContent-Type: text/html; charset=", "utf-8"},
		{"HTTP/1.1 200 OK\r\nContent-Type: text/html; title=\xe9; charset=ISO-8859-1", "ISO-8859-1"},
		{"HTTP/1.1 200 OK\r\nContent-Type: \xe2\x84\xaa; charset=ISO-8859-2", "ISO-8859-2"},
		{"HTTP/1.1 200 OK\r\nContent-Type: \xff\xff\xffcharset=", "utf-8"},
		{"HTTP/1.1 200 OK\r\nContent-Type: \xff\xffcharset=latin1", "latin1"},
		{"HTTP/1.1 200 OK\r\nContent-Type: text/html; \xe2\x84\xaaharset=x", "utf-8"},
	}

	for _, tt := range tests {
		if got := ResolveCharset(ParseHeaders([]byte(tt.head))); got != tt.want {
			t.Fatalf("ResolveCharset(%q) = %q, want %q", tt.head, got, tt.want)
		}
	}
}

func TestDecodeText(t *testing.T) {
	got, err := DecodeText([]byte("caf\xe9"), "ISO-8859-1")
	if err != nil {
		t.Fatalf("DecodeText latin1: %v", err)
	}
	if got != "café" {
		t.Fatalf("DecodeText latin1 = %q", got)
	}

	got, err = DecodeText([]byte("café"), DefaultCharset)
	if err != nil || got != "café" {
		t.Fatalf("DecodeText utf-8 = %q, %v", got, err)
	}
}

func TestDecodeTextErrors(t *testing.T) {
	if _, err := DecodeText([]byte("caf\xe9"), "utf-8"); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode for invalid utf-8, got %v", err)
	}
	if _, err := DecodeText([]byte("x"), "no-such-charset"); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode for unknown charset, got %v", err)
	}
}
