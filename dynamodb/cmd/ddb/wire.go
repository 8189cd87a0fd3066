package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// wireRequest is a transaction action in the DynamoDB JSON wire format.
type wireRequest struct {
	TableName                 string                    `json:"TableName"`
	Key                       map[string]map[string]any `json:"Key,omitempty"`
	Item                      map[string]map[string]any `json:"Item,omitempty"`
	UpdateExpression          *string                   `json:"UpdateExpression,omitempty"`
	ConditionExpression       *string                   `json:"ConditionExpression,omitempty"`
	ExpressionAttributeNames  map[string]string         `json:"ExpressionAttributeNames,omitempty"`
	ExpressionAttributeValues map[string]map[string]any `json:"ExpressionAttributeValues,omitempty"`
}

func toWire(twi types.TransactWriteItem) (map[string]wireRequest, error) {
	switch {
	case twi.Put != nil:
		return map[string]wireRequest{"Put": {
			TableName:                 deref(twi.Put.TableName),
			Item:                      wireItem(twi.Put.Item),
			ConditionExpression:       twi.Put.ConditionExpression,
			ExpressionAttributeNames:  twi.Put.ExpressionAttributeNames,
			ExpressionAttributeValues: wireItem(twi.Put.ExpressionAttributeValues),
		}}, nil
	case twi.Update != nil:
		return map[string]wireRequest{"Update": {
			TableName:                 deref(twi.Update.TableName),
			Key:                       wireItem(twi.Update.Key),
			UpdateExpression:          twi.Update.UpdateExpression,
			ConditionExpression:       twi.Update.ConditionExpression,
			ExpressionAttributeNames:  twi.Update.ExpressionAttributeNames,
			ExpressionAttributeValues: wireItem(twi.Update.ExpressionAttributeValues),
		}}, nil
	case twi.Delete != nil:
		return map[string]wireRequest{"Delete": {
			TableName:                 deref(twi.Delete.TableName),
			Key:                       wireItem(twi.Delete.Key),
			ConditionExpression:       twi.Delete.ConditionExpression,
			ExpressionAttributeNames:  twi.Delete.ExpressionAttributeNames,
			ExpressionAttributeValues: wireItem(twi.Delete.ExpressionAttributeValues),
		}}, nil
	}
	return nil, fmt.Errorf("empty transact write item")
}

func wireItem(m map[string]types.AttributeValue) map[string]map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]map[string]any, len(m))
	for k, v := range m {
		out[k] = wireValue(v)
	}
	return out
}

// wireValue renders one attribute value; binary values become base64 through encoding/json.
func wireValue(av types.AttributeValue) map[string]any {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return map[string]any{"S": v.Value}
	case *types.AttributeValueMemberN:
		return map[string]any{"N": v.Value}
	case *types.AttributeValueMemberB:
		return map[string]any{"B": v.Value}
	case *types.AttributeValueMemberBOOL:
		return map[string]any{"BOOL": v.Value}
	case *types.AttributeValueMemberNULL:
		return map[string]any{"NULL": true}
	case *types.AttributeValueMemberSS:
		return map[string]any{"SS": v.Value}
	case *types.AttributeValueMemberNS:
		return map[string]any{"NS": v.Value}
	case *types.AttributeValueMemberBS:
		return map[string]any{"BS": v.Value}
	case *types.AttributeValueMemberL:
		l := make([]map[string]any, len(v.Value))
		for i, e := range v.Value {
			l[i] = wireValue(e)
		}
		return map[string]any{"L": l}
	case *types.AttributeValueMemberM:
		return map[string]any{"M": wireItem(v.Value)}
	}
	return map[string]any{}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readItem parses the -item flag: inline JSON, or @path to read a file.
// Integral numbers decode to int64, others to float64.
func readItem(arg string) (map[string]any, error) {
	if arg == "" {
		return nil, fmt.Errorf("-item is required")
	}
	data := []byte(arg)
	if path, ok := strings.CutPrefix(arg, "@"); ok {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, err
		}
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parse item: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("parse item: want a JSON object")
	}
	return normalizeNumbers(m).(map[string]any), nil
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(string(t), 10, 64); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
		return t
	}
	return v
}
