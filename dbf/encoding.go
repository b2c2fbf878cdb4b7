package dbf

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

// DefaultEncoding applies when neither a .cpg file nor the language driver
// byte names a code page.
var DefaultEncoding encoding.Encoding = charmap.ISO8859_1

type codePage struct {
	cpg   string   // name written to .cpg files
	names []string // accepted .cpg spellings, upper case
	ldid  byte     // language driver id, 0 when none
	enc   encoding.Encoding
}

var codePages = []codePage{
	{"UTF-8", []string{"UTF-8", "UTF8", "65001"}, 0x00, unicode.UTF8},
	{"ISO-8859-1", []string{"ISO-8859-1", "ISO8859-1", "88591", "LATIN1"}, 0x00, charmap.ISO8859_1},
	{"ISO-8859-2", []string{"ISO-8859-2", "88592", "LATIN2"}, 0x00, charmap.ISO8859_2},
	{"ISO-8859-15", []string{"ISO-8859-15", "885915", "LATIN9"}, 0x00, charmap.ISO8859_15},
	{"1252", []string{"1252", "CP1252", "WINDOWS-1252", "ANSI 1252"}, 0x57, charmap.Windows1252},
	{"1250", []string{"1250", "CP1250", "WINDOWS-1250", "ANSI 1250"}, 0xC8, charmap.Windows1250},
	{"1251", []string{"1251", "CP1251", "WINDOWS-1251", "ANSI 1251"}, 0xC9, charmap.Windows1251},
	{"1253", []string{"1253", "CP1253", "WINDOWS-1253", "ANSI 1253"}, 0xCB, charmap.Windows1253},
	{"1254", []string{"1254", "CP1254", "WINDOWS-1254", "ANSI 1254"}, 0xCA, charmap.Windows1254},
	{"1257", []string{"1257", "CP1257", "WINDOWS-1257", "ANSI 1257"}, 0xCC, charmap.Windows1257},
	{"437", []string{"437", "CP437", "OEM 437", "IBM437"}, 0x01, charmap.CodePage437},
	{"850", []string{"850", "CP850", "OEM 850", "IBM850"}, 0x02, charmap.CodePage850},
	{"852", []string{"852", "CP852", "OEM 852", "IBM852"}, 0x64, charmap.CodePage852},
	{"865", []string{"865", "CP865", "OEM 865", "IBM865"}, 0x66, charmap.CodePage865},
	{"866", []string{"866", "CP866", "OEM 866", "IBM866"}, 0x65, charmap.CodePage866},
	{"932", []string{"932", "CP932", "SHIFT_JIS", "SJIS"}, 0x13, japanese.ShiftJIS},
	{"936", []string{"936", "CP936", "GBK", "GB2312"}, 0x4D, simplifiedchinese.GBK},
	{"949", []string{"949", "CP949", "MS949", "EUC-KR"}, 0x4E, korean.EUCKR},
	{"950", []string{"950", "CP950", "BIG5"}, 0x4F, traditionalchinese.Big5},
}

// EncodingFor resolves the code page named in a .cpg file. Names the
// table above does not know are looked up in the WHATWG index.
func EncodingFor(name string) (encoding.Encoding, error) {
	key := strings.ToUpper(strings.TrimSpace(name))
	for _, cp := range codePages {
		for _, n := range cp.names {
			if n == key {
				return cp.enc, nil
			}
		}
	}
	enc, err := htmlindex.Get(strings.TrimSpace(name))
	if err != nil {
		return nil, fmt.Errorf("dbf: unknown code page %q: %w", name, err)
	}
	return enc, nil
}

// encodingForLDID maps a language driver id to an encoding, or nil.
func encodingForLDID(ldid byte) encoding.Encoding {
	if ldid == 0 {
		return nil
	}
	if ldid == 0x03 {
		return charmap.Windows1252
	}
	for _, cp := range codePages {
		if cp.ldid == ldid {
			return cp.enc
		}
	}
	return nil
}

func lookup(enc encoding.Encoding) (codePage, bool) {
	for _, cp := range codePages {
		if cp.enc == enc {
			return cp, true
		}
	}
	return codePage{}, false
}

// CPGName returns the name to write to a .cpg file for enc, or "" when enc
// has no well-known name.
func CPGName(enc encoding.Encoding) string {
	cp, _ := lookup(enc)
	return cp.cpg
}

func ldidFor(enc encoding.Encoding) byte {
	cp, _ := lookup(enc)
	return cp.ldid
}
