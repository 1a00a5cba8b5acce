package types

import (
	"database/sql/driver"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// GeographyPoint represents a PostGIS Point expressed in geography format.
type GeographyPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Value produces an EWKT literal so Postgres can cast the geography.
func (g GeographyPoint) Value() (driver.Value, error) {
	return fmt.Sprintf("SRID=4326;POINT(%f %f)", g.Lng, g.Lat), nil
}

// Scan accepts WKT/EWKT or WKB bytes returned by Postgres.
func (g *GeographyPoint) Scan(value interface{}) error {
	if value == nil {
		*g = GeographyPoint{}
		return nil
	}

	switch v := value.(type) {
	case string:
		return g.fromTextOrHex(v)
	case []byte:
		text := strings.TrimSpace(string(v))
		upper := strings.ToUpper(text)
		if strings.HasPrefix(upper, "SRID=") || strings.HasPrefix(upper, "POINT(") {
			return g.fromText(text)
		}
		if decoded, err := hex.DecodeString(text); err == nil && len(decoded) >= 21 {
			return g.fromWKB(decoded)
		}
		return g.fromWKB(v)
	default:
		if stringer, ok := value.(fmt.Stringer); ok {
			return g.fromTextOrHex(stringer.String())
		}
		return fmt.Errorf("geography: unsupported scan type %T", value)
	}
}

// fromTextOrHex handles both WKT literals and the hex EWKB strings that
// PostGIS emits for geography columns.
func (g *GeographyPoint) fromTextOrHex(raw string) error {
	raw = strings.TrimSpace(raw)
	upper := strings.ToUpper(raw)
	if strings.HasPrefix(upper, "SRID=") || strings.HasPrefix(upper, "POINT(") {
		return g.fromText(raw)
	}
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return g.fromText(raw)
	}
	return g.fromWKB(decoded)
}

func (g *GeographyPoint) fromText(raw string) error {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToUpper(raw), "SRID=") {
		if idx := strings.Index(raw, ";"); idx != -1 {
			raw = raw[idx+1:]
		}
	}

	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(strings.ToUpper(raw), "POINT(") || !strings.HasSuffix(raw, ")") {
		return fmt.Errorf("geography: unsupported text %q", raw)
	}

	content := strings.TrimSpace(raw[len("POINT(") : len(raw)-1])
	segments := strings.Fields(content)
	if len(segments) != 2 {
		return fmt.Errorf("geography: unexpected POINT content %q", content)
	}

	lng, err := strconvParseFloat(segments[0])
	if err != nil {
		return err
	}
	lat, err := strconvParseFloat(segments[1])
	if err != nil {
		return err
	}

	g.Lng = lng
	g.Lat = lat
	return nil
}

func (g *GeographyPoint) fromWKB(raw []byte) error {
	if len(raw) < 21 {
		return fmt.Errorf("geography: wkb too short")
	}

	var order binary.ByteOrder
	switch raw[0] {
	case 0:
		order = binary.BigEndian
	case 1:
		order = binary.LittleEndian
	default:
		return fmt.Errorf("geography: invalid byte order %d", raw[0])
	}

	geomType := order.Uint32(raw[1:5])
	offset := 5
	if geomType&ewkbSRIDFlag != 0 {
		// EWKB carries a 4 byte SRID before the coordinates.
		geomType &^= ewkbSRIDFlag
		offset += 4
	}
	if geomType != 1 {
		return fmt.Errorf("geography: unexpected geometry type %d", geomType)
	}
	if len(raw) < offset+16 {
		return fmt.Errorf("geography: wkb too short")
	}

	g.Lng = math.Float64frombits(order.Uint64(raw[offset : offset+8]))
	g.Lat = math.Float64frombits(order.Uint64(raw[offset+8 : offset+16]))
	return nil
}

const ewkbSRIDFlag = 0x20000000

func strconvParseFloat(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("geography: empty coordinate")
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("geography: parse coordinate %w", err)
	}
	return f, nil
}
