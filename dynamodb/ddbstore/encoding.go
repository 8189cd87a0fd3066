package ddbstore

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"math"
	"strconv"

	"github.com/antipr000/NobaServer-sub003/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Badger key layout, ordered so a prefix scan walks one partition in sort
// key order:
//
//	table:  [table] 0x00 [pk] 0x00 [sk]
//	index:  [table] $gsi: [index] 0x00 [pk] 0x00 [sk] 0x00 [table key]
//
// Index entries carry the table key so items sharing index keys do not
// collide.

const (
	keySeparator byte = 0x00
	gsiMarker         = "$gsi:"
	tokenMarker       = "$token:"
)

const (
	keyTypeString byte = 'S'
	keyTypeNumber byte = 'N'
	keyTypeBinary byte = 'B'
)

type keyEncoder struct {
	tableName string
	indexName string
	keyDef    table.PrimaryKeyDefinition
}

func (e keyEncoder) prefix() []byte {
	var buf bytes.Buffer
	buf.WriteString(e.tableName)
	if e.indexName != "" {
		buf.WriteString(gsiMarker)
		buf.WriteString(e.indexName)
	}
	buf.WriteByte(keySeparator)
	return buf.Bytes()
}

func (e keyEncoder) partitionPrefix(partition any) ([]byte, error) {
	pk, err := encodeKeyValue(partition, e.keyDef.PartitionKey.Kind)
	if err != nil {
		return nil, fmt.Errorf("encode partition key: %w", err)
	}
	buf := bytes.NewBuffer(e.prefix())
	buf.Write(pk)
	buf.WriteByte(keySeparator)
	return buf.Bytes(), nil
}

func (e keyEncoder) encode(pk table.PrimaryKey) ([]byte, error) {
	out, err := e.partitionPrefix(pk.Values.PartitionKey)
	if err != nil {
		return nil, err
	}
	if e.keyDef.SortKey.Name == "" {
		return out, nil
	}
	sk, err := encodeKeyValue(pk.Values.SortKey, e.keyDef.SortKey.Kind)
	if err != nil {
		return nil, fmt.Errorf("encode sort key: %w", err)
	}
	return append(out, sk...), nil
}

// encodeIndexEntry builds the index key for item, or nil when the item does
// not carry every index key attribute.
func (e keyEncoder) encodeIndexEntry(tableKey []byte, item map[string]types.AttributeValue) ([]byte, error) {
	for _, name := range e.keyDef.Names() {
		if _, ok := item[name]; !ok {
			return nil, nil
		}
	}
	pk, err := e.keyDef.ExtractPrimaryKey(item)
	if err != nil {
		// Wrong-typed index attributes keep the item out of the index.
		return nil, nil
	}
	out, err := e.encode(pk)
	if err != nil {
		return nil, err
	}
	out = append(out, keySeparator)
	return append(out, tableKey...), nil
}

func encodeKeyValue(value any, kind table.KeyKind) ([]byte, error) {
	var buf bytes.Buffer
	switch kind {
	case table.KeyKindS:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string for S key, got %T", value)
		}
		buf.WriteByte(keyTypeString)
		buf.Write(escapeBytes([]byte(s)))
	case table.KeyKindN:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected number string for N key, got %T", value)
		}
		n, err := encodeNumber(s)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(keyTypeNumber)
		buf.Write(n)
	case table.KeyKindB:
		b, ok := value.([]byte)
		if !ok {
			return nil, fmt.Errorf("expected []byte for B key, got %T", value)
		}
		buf.WriteByte(keyTypeBinary)
		buf.Write(escapeBytes(b))
	default:
		return nil, fmt.Errorf("unsupported key kind: %s", kind)
	}
	return buf.Bytes(), nil
}

// encodeNumber maps a number onto 9 bytes whose byte order matches numeric
// order. Precision is that of float64.
func encodeNumber(s string) ([]byte, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("parse number %q: %w", s, err)
	}
	bits := math.Float64bits(f)
	buf := make([]byte, 9)
	if f >= 0 {
		buf[0] = 0x80
		bits ^= 1 << 63
	} else {
		buf[0] = 0x7F
		bits = ^bits
	}
	binary.BigEndian.PutUint64(buf[1:], bits)
	return buf, nil
}

// escapeBytes keeps 0x00 free for the separator: 0x00 becomes 0x01 0x01
// and 0x01 becomes 0x01 0x02.
func escapeBytes(b []byte) []byte {
	var buf bytes.Buffer
	for _, c := range b {
		switch c {
		case 0x00:
			buf.Write([]byte{0x01, 0x01})
		case 0x01:
			buf.Write([]byte{0x01, 0x02})
		default:
			buf.WriteByte(c)
		}
	}
	return buf.Bytes()
}

// reverseSeekKey sorts after every key under p. Keys under a partition
// prefix continue with a type marker or a separator, both below 0xFF.
func reverseSeekKey(p []byte) []byte {
	return append(append([]byte(nil), p...), 0xFF)
}

// storedValue is the gob form of an attribute value.
type storedValue struct {
	T    string
	S    string
	B    []byte
	Bool bool
	SS   []string
	BS   [][]byte
	L    []storedValue
	M    map[string]storedValue
}

func serializeItem(item map[string]types.AttributeValue) ([]byte, error) {
	m := make(map[string]storedValue, len(item))
	for k, v := range item {
		sv, err := toStored(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		m[k] = sv
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("encode item: %w", err)
	}
	return buf.Bytes(), nil
}

func deserializeItem(data []byte) (map[string]types.AttributeValue, error) {
	var m map[string]storedValue
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	out := make(map[string]types.AttributeValue, len(m))
	for k, v := range m {
		out[k] = fromStored(v)
	}
	return out, nil
}

func toStored(av types.AttributeValue) (storedValue, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return storedValue{T: "S", S: v.Value}, nil
	case *types.AttributeValueMemberN:
		return storedValue{T: "N", S: v.Value}, nil
	case *types.AttributeValueMemberB:
		return storedValue{T: "B", B: v.Value}, nil
	case *types.AttributeValueMemberBOOL:
		return storedValue{T: "BOOL", Bool: v.Value}, nil
	case *types.AttributeValueMemberNULL:
		return storedValue{T: "NULL", Bool: v.Value}, nil
	case *types.AttributeValueMemberSS:
		return storedValue{T: "SS", SS: v.Value}, nil
	case *types.AttributeValueMemberNS:
		return storedValue{T: "NS", SS: v.Value}, nil
	case *types.AttributeValueMemberBS:
		return storedValue{T: "BS", BS: v.Value}, nil
	case *types.AttributeValueMemberL:
		l := make([]storedValue, len(v.Value))
		for i, inner := range v.Value {
			sv, err := toStored(inner)
			if err != nil {
				return storedValue{}, err
			}
			l[i] = sv
		}
		return storedValue{T: "L", L: l}, nil
	case *types.AttributeValueMemberM:
		m := make(map[string]storedValue, len(v.Value))
		for k, inner := range v.Value {
			sv, err := toStored(inner)
			if err != nil {
				return storedValue{}, err
			}
			m[k] = sv
		}
		return storedValue{T: "M", M: m}, nil
	}
	return storedValue{}, fmt.Errorf("unsupported attribute value type %T", av)
}

func fromStored(sv storedValue) types.AttributeValue {
	switch sv.T {
	case "S":
		return &types.AttributeValueMemberS{Value: sv.S}
	case "N":
		return &types.AttributeValueMemberN{Value: sv.S}
	case "B":
		return &types.AttributeValueMemberB{Value: sv.B}
	case "BOOL":
		return &types.AttributeValueMemberBOOL{Value: sv.Bool}
	case "NULL":
		return &types.AttributeValueMemberNULL{Value: sv.Bool}
	case "SS":
		return &types.AttributeValueMemberSS{Value: sv.SS}
	case "NS":
		return &types.AttributeValueMemberNS{Value: sv.SS}
	case "BS":
		return &types.AttributeValueMemberBS{Value: sv.BS}
	case "L":
		l := make([]types.AttributeValue, len(sv.L))
		for i, inner := range sv.L {
			l[i] = fromStored(inner)
		}
		return &types.AttributeValueMemberL{Value: l}
	default:
		m := make(map[string]types.AttributeValue, len(sv.M))
		for k, inner := range sv.M {
			m[k] = fromStored(inner)
		}
		return &types.AttributeValueMemberM{Value: m}
	}
}
