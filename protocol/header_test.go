package protocol

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/pithecene-io/pressroom/types"
)

func TestEncodeHeader_RoundTripRequest(t *testing.T) {
	tests := []types.ConversionRequest{
		{ConversionType: types.ConversionTxt2PDF, FileName: "a.txt", FileSize: 37},
		{ConversionType: types.ConversionTxt2PDF, FileName: "empty.txt", FileSize: 0},
		{ConversionType: "other", FileName: "ünïcødé name.txt", FileSize: 1 << 40},
	}

	for _, want := range tests {
		block, err := EncodeHeader(&want)
		if err != nil {
			t.Fatalf("EncodeHeader(%+v) failed: %v", want, err)
		}
		if len(block) != HeaderSize {
			t.Fatalf("encoded length = %d, want %d", len(block), HeaderSize)
		}

		var got types.ConversionRequest
		if err := DecodeHeader(block, &got); err != nil {
			t.Fatalf("DecodeHeader failed: %v", err)
		}
		if got != want {
			t.Errorf("round trip = %+v, want %+v", got, want)
		}
	}
}

func TestEncodeHeader_RoundTripResponse(t *testing.T) {
	tests := []*types.ConversionResponse{
		types.NewSuccessResponse("a.pdf", 1830),
		types.NewErrorResponse("El archivo debe ser .txt"),
	}

	for _, want := range tests {
		block, err := EncodeHeader(want)
		if err != nil {
			t.Fatalf("EncodeHeader failed: %v", err)
		}
		var got types.ConversionResponse
		if err := DecodeHeader(block, &got); err != nil {
			t.Fatalf("DecodeHeader failed: %v", err)
		}
		if got != *want {
			t.Errorf("round trip = %+v, want %+v", got, *want)
		}
	}
}

func TestEncodeHeader_PadsWithSpaces(t *testing.T) {
	block, err := EncodeHeader(map[string]int{"file_size": 5})
	if err != nil {
		t.Fatalf("EncodeHeader failed: %v", err)
	}

	content := `{"file_size":5}`
	if !bytes.HasPrefix(block, []byte(content)) {
		t.Fatalf("block does not start with JSON content: %q", block[:32])
	}
	for i := len(content); i < HeaderSize; i++ {
		if block[i] != PadByte {
			t.Fatalf("byte %d = %#x, want pad byte %#x", i, block[i], PadByte)
		}
	}
}

// stringOfJSONLength returns a JSON string value whose encoding, including
// quotes, is exactly n bytes.
func stringOfJSONLength(n int) string {
	return strings.Repeat("x", n-2)
}

func TestEncodeHeader_ExactWidthSucceeds(t *testing.T) {
	block, err := EncodeHeader(stringOfJSONLength(HeaderSize))
	if err != nil {
		t.Fatalf("EncodeHeader of exactly %d bytes failed: %v", HeaderSize, err)
	}
	if len(block) != HeaderSize {
		t.Fatalf("encoded length = %d, want %d", len(block), HeaderSize)
	}
	if block[HeaderSize-1] != '"' {
		t.Errorf("last byte = %q, want closing quote (no padding)", block[HeaderSize-1])
	}
}

func TestEncodeHeader_TooLarge(t *testing.T) {
	_, err := EncodeHeader(stringOfJSONLength(HeaderSize + 1))
	if err == nil {
		t.Fatal("expected error for oversized header")
	}
	if !IsHeaderError(err, HeaderErrorTooLarge) {
		t.Errorf("expected HeaderErrorTooLarge, got %v", err)
	}
}

func TestDecodeHeader_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		block []byte
	}{
		{"all padding", bytes.Repeat([]byte{PadByte}, HeaderSize)},
		{"empty", nil},
		{"not json", []byte("hello there")},
		{"truncated json", []byte(`{"file_name": "a.txt"`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req types.ConversionRequest
			err := DecodeHeader(tt.block, &req)
			if !IsHeaderError(err, HeaderErrorMalformed) {
				t.Errorf("expected HeaderErrorMalformed, got %v", err)
			}
		})
	}
}

func TestDecodeHeader_TrimsWhitespace(t *testing.T) {
	block := []byte("\n  {\"conversion_type\": \"txt2pdf\", \"file_name\": \"a.txt\", \"file_size\": 3}\r\n   ")
	var req types.ConversionRequest
	if err := DecodeHeader(block, &req); err != nil {
		t.Fatalf("DecodeHeader failed: %v", err)
	}
	if req.FileName != "a.txt" || req.FileSize != 3 {
		t.Errorf("decoded %+v", req)
	}
}

func TestReadHeader(t *testing.T) {
	t.Run("full", func(t *testing.T) {
		block, _ := EncodeHeader(types.NewSuccessResponse("a.pdf", 1))
		got, err := ReadHeader(bytes.NewReader(append(block, 'x')))
		if err != nil {
			t.Fatalf("ReadHeader failed: %v", err)
		}
		if !bytes.Equal(got, block) {
			t.Error("ReadHeader returned a different block")
		}
	})

	t.Run("peer closed", func(t *testing.T) {
		_, err := ReadHeader(bytes.NewReader(nil))
		if !errors.Is(err, ErrPeerClosed) {
			t.Errorf("expected ErrPeerClosed, got %v", err)
		}
	})

	t.Run("partial", func(t *testing.T) {
		_, err := ReadHeader(bytes.NewReader([]byte(`{"file_name":`)))
		if !IsHeaderError(err, HeaderErrorPartial) {
			t.Errorf("expected HeaderErrorPartial, got %v", err)
		}
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Errorf("expected wrapped io.ErrUnexpectedEOF, got %v", err)
		}
	})
}

func TestWriteHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHeader(&buf, types.NewErrorResponse("nope")); err != nil {
		t.Fatalf("WriteHeader failed: %v", err)
	}
	if buf.Len() != HeaderSize {
		t.Fatalf("wrote %d bytes, want %d", buf.Len(), HeaderSize)
	}
	var resp types.ConversionResponse
	if err := DecodeHeader(buf.Bytes(), &resp); err != nil {
		t.Fatalf("DecodeHeader failed: %v", err)
	}
	if resp.Error != "nope" {
		t.Errorf("Error = %q, want %q", resp.Error, "nope")
	}
}
