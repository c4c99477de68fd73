package common

import (
	"errors"
	"testing"
)

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name    string
		raw     []byte
		charset string
		want    string
		wantErr bool
	}{
		{name: "default utf-8", raw: []byte("café"), want: "café"},
		{name: "utf-8 bom stripped", raw: []byte("\xef\xbb\xbfhello"), charset: "UTF-8", want: "hello"},
		{name: "latin1 alias", raw: []byte{'c', 'a', 'f', 0xe9}, charset: "latin1", want: "café"},
		{name: "iana name", raw: []byte{'c', 'a', 'f', 0xe9}, charset: "ISO-8859-1", want: "café"},
		{name: "windows-1252 quotes", raw: []byte{0x93, 'q', 0x94}, charset: "windows-1252", want: "“q”"},
		{name: "utf-16 with bom", raw: []byte{0xff, 0xfe, 'h', 0, 'i', 0}, charset: "utf-16", want: "hi"},
		{name: "invalid utf-8", raw: []byte{'a', 0xff}, wantErr: true},
		{name: "unknown charset", raw: []byte("x"), charset: "klingon-8", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeText(tt.raw, tt.charset)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				if !errors.Is(err, ErrInvalidInput) {
					t.Errorf("error %v is not ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("DecodeText = %q, want %q", got, tt.want)
			}
		})
	}
}
