package measurements

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"lcreduce/pkg/lcreduce"
)

const (
	fitsCardSize  = 80
	fitsBlockSize = 2880
)

// Header holds parsed FITS header key-value pairs.
type Header struct {
	Cards map[string]string
}

// NewHeader creates an empty Header.
func NewHeader() *Header {
	return &Header{Cards: make(map[string]string)}
}

func (h *Header) GetString(key string) string {
	if v, ok := h.Cards[strings.ToUpper(key)]; ok {
		return v
	}
	return ""
}

func (h *Header) GetDouble(key string) (float64, bool) {
	v, ok := h.Cards[strings.ToUpper(key)]
	if !ok {
		return 0, false
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return d, true
}

func (h *Header) GetInt(key string) (int, bool) {
	v, ok := h.Cards[strings.ToUpper(key)]
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return i, true
}

func (h *Header) ObjectName() string { return h.GetString("OBJECT") }
func (h *Header) Filter() string     { return h.GetString("FILTER") }
func (h *Header) Telescope() string  { return h.GetString("TELESCOP") }

// Title names the object followed by the filter and telescope when present.
func (h *Header) Title() string {
	var extra []string
	for _, v := range []string{h.Filter(), h.Telescope()} {
		if v != "" {
			extra = append(extra, v)
		}
	}
	if len(extra) == 0 {
		return h.ObjectName()
	}
	return fmt.Sprintf("%s (%s)", h.ObjectName(), strings.Join(extra, ", "))
}

// HostTeff is the host star effective temperature in K.
func (h *Header) HostTeff() (float64, bool) {
	if v, ok := h.GetDouble("TEFF"); ok {
		return v, true
	}
	return h.GetDouble("TEFF_K")
}

// HostRadius is the host star radius in solar radii.
func (h *Header) HostRadius() (float64, bool) {
	if v, ok := h.GetDouble("RADIUS"); ok {
		return v, true
	}
	return h.GetDouble("R_STAR")
}

// Period is the orbital period in days, when the file carries one.
func (h *Header) Period() (float64, bool) { return h.GetDouble("PERIOD") }

// ReadFITSFile reads the first binary table of a FITS file.
func ReadFITSFile(path string) (*lcreduce.Table, *Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening FITS file: %w", err)
	}
	defer f.Close()
	return ReadFITS(f)
}

// ReadFITSBytes reads the first binary table from an in-memory FITS file.
func ReadFITSBytes(data []byte) (*lcreduce.Table, *Header, error) {
	return ReadFITS(bytes.NewReader(data))
}

// ReadFITS skips the primary HDU and loads the first BINTABLE extension.
// The returned header merges primary and extension cards, the extension winning.
func ReadFITS(r io.Reader) (*lcreduce.Table, *Header, error) {
	primary, err := readHeader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("reading primary header: %w", err)
	}
	if err := skipData(r, primary); err != nil {
		return nil, nil, err
	}

	for {
		ext, err := readHeader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("no binary table extension: %w", err)
		}
		if ext.GetString("XTENSION") != "BINTABLE" {
			if err := skipData(r, ext); err != nil {
				return nil, nil, err
			}
			continue
		}
		tbl, err := readBinTable(r, ext)
		if err != nil {
			return nil, nil, err
		}
		merged := NewHeader()
		for k, v := range primary.Cards {
			merged.Cards[k] = v
		}
		for k, v := range ext.Cards {
			merged.Cards[k] = v
		}
		return tbl, merged, nil
	}
}

func readHeader(r io.Reader) (*Header, error) {
	h := NewHeader()
	recordBuf := make([]byte, fitsCardSize)

	for {
		for i := 0; i < fitsBlockSize/fitsCardSize; i++ {
			if _, err := io.ReadFull(r, recordBuf); err != nil {
				return nil, fmt.Errorf("reading FITS header record: %w", err)
			}
			record := string(recordBuf)
			keyword := strings.TrimSpace(record[:8])

			if keyword == "END" {
				remaining := fitsBlockSize/fitsCardSize - 1 - i
				if remaining > 0 {
					if _, err := io.ReadFull(r, make([]byte, remaining*fitsCardSize)); err != nil {
						return nil, fmt.Errorf("reading FITS header padding: %w", err)
					}
				}
				return h, nil
			}

			if record[8] == '=' && record[9] == ' ' {
				rawValue := strings.TrimSpace(splitComment(record[10:]))
				if v := parseFitsValue(rawValue); keyword != "" && v != "" {
					h.Cards[strings.ToUpper(keyword)] = v
				}
			}
		}
	}
}

// splitComment cuts the value at the first '/' outside a quoted string.
func splitComment(s string) string {
	quoted := false
	for i, c := range s {
		switch c {
		case '\'':
			quoted = !quoted
		case '/':
			if !quoted {
				return s[:i]
			}
		}
	}
	return s
}

func parseFitsValue(rawValue string) string {
	if rawValue == "" {
		return ""
	}
	if rawValue == "T" {
		return "True"
	}
	if rawValue == "F" {
		return "False"
	}
	if strings.HasPrefix(rawValue, "'") {
		endQuote := strings.LastIndex(rawValue, "'")
		if endQuote > 0 {
			return strings.TrimRight(strings.ReplaceAll(rawValue[1:endQuote], "''", "'"), " ")
		}
		return strings.TrimLeft(strings.TrimRight(rawValue, " "), "'")
	}
	return rawValue
}

// dataSize is the padded byte length of the HDU data following h.
func dataSize(h *Header) int64 {
	naxis, _ := h.GetInt("NAXIS")
	if naxis == 0 {
		return 0
	}
	bitpix, _ := h.GetInt("BITPIX")
	n := int64(1)
	for i := 1; i <= naxis; i++ {
		v, _ := h.GetInt(fmt.Sprintf("NAXIS%d", i))
		n *= int64(v)
	}
	pcount, _ := h.GetInt("PCOUNT")
	gcount, ok := h.GetInt("GCOUNT")
	if !ok {
		gcount = 1
	}
	size := int64(math.Abs(float64(bitpix))) / 8 * int64(gcount) * (int64(pcount) + n)
	return (size + fitsBlockSize - 1) / fitsBlockSize * fitsBlockSize
}

func skipData(r io.Reader, h *Header) error {
	if _, err := io.CopyN(io.Discard, r, dataSize(h)); err != nil {
		return fmt.Errorf("skipping FITS data: %w", err)
	}
	return nil
}

// binColumn describes one TFORM field.
type binColumn struct {
	name   string
	code   byte
	repeat int
	offset int
	scale  float64
	zero   float64
	null   *int64
}

var binWidths = map[byte]int{'L': 1, 'X': 1, 'B': 1, 'I': 2, 'J': 4, 'K': 8, 'A': 1, 'E': 4, 'D': 8, 'C': 8, 'M': 16, 'P': 8, 'Q': 16}

func parseTForm(form string) (code byte, repeat int, err error) {
	form = strings.TrimSpace(form)
	i := 0
	for i < len(form) && form[i] >= '0' && form[i] <= '9' {
		i++
	}
	if i == len(form) {
		return 0, 0, fmt.Errorf("bad TFORM %q", form)
	}
	repeat = 1
	if i > 0 {
		repeat, _ = strconv.Atoi(form[:i])
	}
	code = form[i]
	if _, ok := binWidths[code]; !ok {
		return 0, 0, fmt.Errorf("unsupported TFORM %q", form)
	}
	return code, repeat, nil
}

func readBinTable(r io.Reader, h *Header) (*lcreduce.Table, error) {
	rowBytes, _ := h.GetInt("NAXIS1")
	rows, _ := h.GetInt("NAXIS2")
	fields, _ := h.GetInt("TFIELDS")
	if rowBytes <= 0 || fields <= 0 {
		return nil, fmt.Errorf("invalid BINTABLE: NAXIS1=%d, TFIELDS=%d", rowBytes, fields)
	}

	var cols []binColumn
	offset := 0
	for i := 1; i <= fields; i++ {
		code, repeat, err := parseTForm(h.GetString(fmt.Sprintf("TFORM%d", i)))
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		c := binColumn{
			name:   h.GetString(fmt.Sprintf("TTYPE%d", i)),
			code:   code,
			repeat: repeat,
			offset: offset,
			scale:  1,
		}
		if c.name == "" {
			c.name = fmt.Sprintf("COL%d", i)
		}
		if v, ok := h.GetDouble(fmt.Sprintf("TSCAL%d", i)); ok {
			c.scale = v
		}
		if v, ok := h.GetDouble(fmt.Sprintf("TZERO%d", i)); ok {
			c.zero = v
		}
		if v, ok := h.GetInt(fmt.Sprintf("TNULL%d", i)); ok {
			n := int64(v)
			c.null = &n
		}
		width := binWidths[code] * repeat
		if code == 'X' {
			width = (repeat + 7) / 8
		}
		offset += width
		cols = append(cols, c)
	}
	if offset > rowBytes {
		return nil, fmt.Errorf("invalid BINTABLE: fields span %d bytes, rows have %d", offset, rowBytes)
	}

	raw := make([]byte, rowBytes*rows)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("reading BINTABLE rows: %w", err)
	}

	tbl := lcreduce.NewTable()
	for _, c := range cols {
		if c.repeat != 1 || !numericCode(c.code) {
			continue
		}
		values := make([]float64, rows)
		for row := range values {
			values[row] = c.decode(raw[row*rowBytes+c.offset:])
		}
		if err := tbl.AddColumn(c.name, values); err != nil {
			return nil, fmt.Errorf("BINTABLE: %w", err)
		}
	}
	return tbl, nil
}

func numericCode(code byte) bool {
	switch code {
	case 'B', 'I', 'J', 'K', 'E', 'D':
		return true
	}
	return false
}

func (c binColumn) decode(b []byte) float64 {
	var iv int64
	switch c.code {
	case 'E':
		return float64(math.Float32frombits(binary.BigEndian.Uint32(b)))*c.scale + c.zero
	case 'D':
		return math.Float64frombits(binary.BigEndian.Uint64(b))*c.scale + c.zero
	case 'B':
		iv = int64(b[0])
	case 'I':
		iv = int64(int16(binary.BigEndian.Uint16(b)))
	case 'J':
		iv = int64(int32(binary.BigEndian.Uint32(b)))
	case 'K':
		iv = int64(binary.BigEndian.Uint64(b))
	default:
		return math.NaN()
	}
	if c.null != nil && iv == *c.null {
		return math.NaN()
	}
	return float64(iv)*c.scale + c.zero
}
