package snapshot

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-rank-watch/features"
	"github.com/aluiziolira/go-rank-watch/models"
)

func sampleSnapshot(capturedAt time.Time) *models.Snapshot {
	return &models.Snapshot{
		CapturedAt: capturedAt,
		Items: []*models.RankedItem{
			{
				Rank:          1,
				ItemCode:      "shop-a:1001",
				Name:          "スーツケース USBポート付き",
				Price:         12800,
				ReviewAverage: 4.53,
				ReviewCount:   321,
				Features:      features.Derive("スーツケース USBポート付き", "軽量 TSAロック"),
			},
			{
				Rank:          2,
				ItemCode:      "shop-b:77",
				Name:          "キャリーケース",
				Price:         9980,
				ReviewAverage: 4,
				ReviewCount:   15,
				Features:      features.Derive("キャリーケース", ""),
			},
		},
	}
}

func TestHeaderShape(t *testing.T) {
	header := Header()

	wantLen := 7 + features.Count()
	if len(header) != wantLen {
		t.Fatalf("header columns=%d, want %d", len(header), wantLen)
	}

	fixed := []string{"rank", "item_code", "item_name", "item_price", "review_average", "review_count"}
	for i, name := range fixed {
		if header[i] != name {
			t.Fatalf("column %d = %q, want %q", i, header[i], name)
		}
	}
	if header[len(header)-1] != "captured_at" {
		t.Fatalf("last column = %q, want captured_at", header[len(header)-1])
	}
	for _, column := range header[len(fixed) : len(header)-1] {
		if !strings.HasPrefix(column, "has_") {
			t.Fatalf("flag column %q missing has_ prefix", column)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	capturedAt := time.Date(2026, 8, 24, 6, 0, 0, 0, time.UTC)
	snap := sampleSnapshot(capturedAt)

	var buf bytes.Buffer
	if err := EncodeCSV(&buf, snap); err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeCSV(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if !decoded.CapturedAt.Equal(capturedAt) {
		t.Fatalf("captured_at=%v, want %v", decoded.CapturedAt, capturedAt)
	}
	if decoded.Len() != 2 {
		t.Fatalf("items=%d, want 2", decoded.Len())
	}

	first := decoded.Items[0]
	if first.Rank != 1 || first.ItemCode != "shop-a:1001" {
		t.Fatalf("first item=%d/%q", first.Rank, first.ItemCode)
	}
	if first.Name != "スーツケース USBポート付き" {
		t.Fatalf("name=%q", first.Name)
	}
	if first.Price != 12800 || first.ReviewAverage != 4.53 || first.ReviewCount != 321 {
		t.Fatalf("price/review=%d/%v/%d", first.Price, first.ReviewAverage, first.ReviewCount)
	}
	if !first.Flag("usb_port") || !first.Flag("lightweight") || !first.Flag("tsa_lock") {
		t.Fatalf("expected usb_port, lightweight and tsa_lock flags set")
	}
	if first.Flag("cup_holder") {
		t.Fatalf("cup_holder should not be set")
	}
	if len(first.Features) != features.Count() {
		t.Fatalf("flags=%d, want %d", len(first.Features), features.Count())
	}

	second := decoded.Items[1]
	if second.Rank != 2 || second.ItemCode != "shop-b:77" {
		t.Fatalf("second item=%d/%q", second.Rank, second.ItemCode)
	}
	if second.ReviewAverage != 4 {
		t.Fatalf("review average=%v, want 4", second.ReviewAverage)
	}
}

func TestDecodeMissingRequiredColumn(t *testing.T) {
	csv := "rank,item_name,item_price\n1,foo,100\n"

	_, err := DecodeCSV(strings.NewReader(csv))
	if err == nil {
		t.Fatalf("expected error for missing item_code column")
	}
	if !strings.Contains(err.Error(), "item_code") {
		t.Fatalf("error=%v, want mention of item_code", err)
	}
}

func TestDecodeOlderSchemaWithFewerFlags(t *testing.T) {
	csv := strings.Join([]string{
		"rank,item_code,item_name,item_price,review_average,review_count,has_usb_port,captured_at",
		"1,a,Item A,100,4.5,10,1,2026-08-20T00:00:00Z",
		"2,b,Item B,200,0,0,0,2026-08-20T00:00:00Z",
	}, "\n") + "\n"

	snap, err := DecodeCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Len() != 2 {
		t.Fatalf("items=%d, want 2", snap.Len())
	}
	if !snap.Items[0].Flag("usb_port") {
		t.Fatalf("usb_port should be set on first item")
	}
	if snap.Items[0].Flag("tsa_lock") {
		t.Fatalf("absent columns must decode as false")
	}
	if snap.Items[1].Flag("usb_port") {
		t.Fatalf("usb_port should not be set on second item")
	}
}

func TestDecodeMalformedRank(t *testing.T) {
	csv := "rank,item_code,item_name,item_price\nnot-a-number,a,Item A,100\n"

	_, err := DecodeCSV(strings.NewReader(csv))
	if err == nil {
		t.Fatalf("expected error for malformed rank")
	}
	if !strings.Contains(err.Error(), "rank") {
		t.Fatalf("error=%v, want mention of rank", err)
	}
}

func TestDecodeErrorsReportPhysicalRow(t *testing.T) {
	// A short record fails inside the csv reader, a bad rank fails in the
	// field parser. Both sit on the row right after the header and must
	// report it under the same number.
	short := "rank,item_code,item_name,item_price\n1,a,Item A\n"
	_, err := DecodeCSV(strings.NewReader(short))
	if err == nil || !strings.Contains(err.Error(), "row 2") {
		t.Fatalf("reader error=%v, want row 2", err)
	}

	badRank := "rank,item_code,item_name,item_price\nnot-a-number,a,Item A,100\n"
	_, err = DecodeCSV(strings.NewReader(badRank))
	if err == nil || !strings.Contains(err.Error(), "row 2") {
		t.Fatalf("parser error=%v, want row 2", err)
	}
}
