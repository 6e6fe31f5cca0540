package dlms

type Err string

func (e Err) Error() string {
	return string(e)
}

const (
	ErrInvalidApduTag  = Err("invalid apdu tag")
	ErrApduDecode      = Err("apdu decode failed")
	ErrUnsupportedType = Err("unsupported type")

	// Data-notification APDU tag
	dataNotification uint8 = 0x0f

	// The invoke-id-and-priority byte the meter sends after the tag
	invokePriority uint8 = 0x80

	dateTimeLength = 12
)

type DataType uint8

// A-XDR data tags as used in COSEM data encoding
const (
	TypeNull               DataType = 0x00
	TypeArray              DataType = 0x01
	TypeStructure          DataType = 0x02
	TypeBoolean            DataType = 0x03
	TypeBitString          DataType = 0x04
	TypeDoubleLong         DataType = 0x05
	TypeDoubleLongUnsigned DataType = 0x06
	TypeOctetString        DataType = 0x09
	TypeVisibleString      DataType = 0x0a
	TypeUTF8String         DataType = 0x0c
	TypeBCD                DataType = 0x0d
	TypeInteger            DataType = 0x0f
	TypeLong               DataType = 0x10
	TypeUnsigned           DataType = 0x11
	TypeLongUnsigned       DataType = 0x12
	TypeLong64             DataType = 0x14
	TypeLong64Unsigned     DataType = 0x15
	TypeEnum               DataType = 0x16
	TypeFloat32            DataType = 0x17
	TypeFloat64            DataType = 0x18
	TypeDateTime           DataType = 0x19
	TypeDate               DataType = 0x1a
	TypeTime               DataType = 0x1b
)

var typeNames = map[DataType]string{
	TypeNull:               "None",
	TypeArray:              "Array",
	TypeStructure:          "Structure",
	TypeBoolean:            "Boolean",
	TypeBitString:          "BitString",
	TypeDoubleLong:         "Int32",
	TypeDoubleLongUnsigned: "UInt32",
	TypeOctetString:        "OctetString",
	TypeVisibleString:      "String",
	TypeUTF8String:         "Utf8String",
	TypeBCD:                "Bcd",
	TypeInteger:            "Int8",
	TypeLong:               "Int16",
	TypeUnsigned:           "UInt8",
	TypeLongUnsigned:       "UInt16",
	TypeLong64:             "Int64",
	TypeLong64Unsigned:     "UInt64",
	TypeEnum:               "Enum",
	TypeFloat32:            "Float32",
	TypeFloat64:            "Float64",
	TypeDateTime:           "DateTime",
	TypeDate:               "Date",
	TypeTime:               "Time",
}

func (t DataType) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return "Unknown"
}

func (t DataType) signed() bool {
	switch t {
	case TypeInteger, TypeLong, TypeDoubleLong, TypeLong64:
		return true
	}
	return false
}

// fixedSize returns the encoded size of fixed length types, or -1.
func (t DataType) fixedSize() int {
	switch t {
	case TypeNull:
		return 0
	case TypeBoolean, TypeBCD, TypeInteger, TypeUnsigned, TypeEnum:
		return 1
	case TypeLong, TypeLongUnsigned:
		return 2
	case TypeDoubleLong, TypeDoubleLongUnsigned, TypeFloat32, TypeTime:
		return 4
	case TypeDate:
		return 5
	case TypeLong64, TypeLong64Unsigned, TypeFloat64:
		return 8
	case TypeDateTime:
		return dateTimeLength
	}
	return -1
}

// Entry is a measured value found next to an OBIS code in a notification.
type Entry struct {
	// Code is the OBIS code as 12 upper-case hex digits, e.g. 0100010800FF
	Code  string
	Value int64
}
