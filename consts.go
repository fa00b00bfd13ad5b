package cardx

import "fmt"

const (
	Name    = "cardx"
	Version = "0.1.0"
)

// ParserState is the position of the parser inside one logical property line.
type ParserState int

const (
	// StatePropertyName accumulates the property name, start of every line
	StatePropertyName ParserState = iota
	// StateParamBeforeName skips whitespace in front of a parameter name
	StateParamBeforeName
	// StateParamInName accumulates a parameter name
	StateParamInName
	// StateValueBeforeValue skips whitespace in front of a parameter value
	StateValueBeforeValue
	// StateValueInValue accumulates a parameter value, honouring backslash escapes
	StateValueInValue
	// StatePropertyData feeds the property value through the decoder
	StatePropertyData
)

func (s ParserState) String() string {
	switch s {
	case StatePropertyName:
		return "PropertyName"
	case StateParamBeforeName:
		return "ParamBeforeName"
	case StateParamInName:
		return "ParamInName"
	case StateValueBeforeValue:
		return "ValueBeforeValue"
	case StateValueInValue:
		return "ValueInValue"
	case StatePropertyData:
		return "PropertyData"
	}
	return fmt.Sprintf("ParserState(%d)", int(s))
}

// EncodingMode is the transfer encoding of a property value. It is selected
// once the property header is complete.
type EncodingMode int

const (
	EncodingNone EncodingMode = iota
	EncodingQuotedPrintable
	EncodingBase64
	EncodingEightBit
)

func (e EncodingMode) String() string {
	switch e {
	case EncodingNone:
		return "none"
	case EncodingQuotedPrintable:
		return "quoted-printable"
	case EncodingBase64:
		return "base64"
	case EncodingEightBit:
		return "8bit"
	}
	return fmt.Sprintf("EncodingMode(%d)", int(e))
}

// encodingTokens maps upper case ENCODING values, or bare parameter names, to a mode.
var encodingTokens = map[string]EncodingMode{
	"QUOTED-PRINTABLE": EncodingQuotedPrintable,
	"QP":               EncodingQuotedPrintable,
	"Q":                EncodingQuotedPrintable,
	"BASE64":           EncodingBase64,
	"B":                EncodingBase64,
	"8BIT":             EncodingEightBit,
	"7BIT":             EncodingNone,
}

const (
	defaultMaxLineLength = 32 << 10
	defaultMaxSize       = 10_485_760 // 10 Mebibytes
	defaultChunkSize     = 4096

	// decoded data is handed to the data handler once this much is batched
	dataFlushSize = 4096
)
