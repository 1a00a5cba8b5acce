package types

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"testing"
)

func TestGeographyPointScanText(t *testing.T) {
	var point GeographyPoint
	if err := point.Scan("SRID=4326;POINT(76.2673 9.9312)"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if point.Lng != 76.2673 || point.Lat != 9.9312 {
		t.Fatalf("unexpected point %+v", point)
	}
}

func TestGeographyPointScanHexEWKB(t *testing.T) {
	raw := buildEWKBPoint(76.2673, 9.9312)
	encoded := hex.EncodeToString(raw)

	var point GeographyPoint
	if err := point.Scan(encoded); err != nil {
		t.Fatalf("scan hex: %v", err)
	}
	if point.Lng != 76.2673 || point.Lat != 9.9312 {
		t.Fatalf("unexpected point %+v", point)
	}

	var fromBytes GeographyPoint
	if err := fromBytes.Scan([]byte(encoded)); err != nil {
		t.Fatalf("scan hex bytes: %v", err)
	}
	if fromBytes != point {
		t.Fatalf("byte scan mismatch: %+v vs %+v", fromBytes, point)
	}
}

func TestGeographyPointScanRejectsGarbage(t *testing.T) {
	var point GeographyPoint
	if err := point.Scan("LINESTRING(0 0, 1 1)"); err == nil {
		t.Fatal("expected error")
	}
}

func TestGeographyPointValueRoundTrip(t *testing.T) {
	point := GeographyPoint{Lat: 9.9312, Lng: 76.2673}
	value, err := point.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	text, ok := value.(string)
	if !ok {
		t.Fatalf("expected string literal, got %T", value)
	}

	var decoded GeographyPoint
	if err := decoded.Scan(text); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if math.Abs(decoded.Lat-point.Lat) > 1e-6 || math.Abs(decoded.Lng-point.Lng) > 1e-6 {
		t.Fatalf("round trip drift: %+v vs %+v", decoded, point)
	}
}

func buildEWKBPoint(lng, lat float64) []byte {
	buf := make([]byte, 25)
	buf[0] = 1
	binary.LittleEndian.PutUint32(buf[1:5], 1|ewkbSRIDFlag)
	binary.LittleEndian.PutUint32(buf[5:9], 4326)
	binary.LittleEndian.PutUint64(buf[9:17], math.Float64bits(lng))
	binary.LittleEndian.PutUint64(buf[17:25], math.Float64bits(lat))
	return buf
}
