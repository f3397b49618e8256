package typespec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Ref is the arena index of a node in the type graph.
type Ref int

func (r Ref) MarshalJSON() ([]byte, error) {
	return []byte(`{"$ref":"#/` + strconv.Itoa(int(r)) + `"}`), nil
}

// CrossFileRef points into the types artifact from the index artifact.
type CrossFileRef struct {
	File string
	Ref  Ref
}

func (r CrossFileRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"$ref": fmt.Sprintf("%s#/%d", r.File, r.Ref)})
}

// Node is one entry of the type graph.
type Node interface {
	Kind() string
}

type PropertyFlags int

const (
	FlagNone               PropertyFlags = 0
	FlagRequired           PropertyFlags = 1 << 0
	FlagReadOnly           PropertyFlags = 1 << 1
	FlagWriteOnly          PropertyFlags = 1 << 2
	FlagDeployTimeConstant PropertyFlags = 1 << 3
	FlagIdentifier         PropertyFlags = 1 << 4
)

type StringType struct {
	Sensitive bool `json:"sensitive,omitempty"`
}

type IntegerType struct{}

type BooleanType struct{}

type StringLiteralType struct {
	Value string `json:"value"`
}

type UnionType struct {
	Elements []Ref `json:"elements"`
}

type ArrayType struct {
	ItemType Ref `json:"itemType"`
}

type Property struct {
	Name        string
	Type        Ref
	Flags       PropertyFlags
	Description string
}

// Properties keeps declaration order when serialized.
type Properties []Property

type ObjectType struct {
	Name       string     `json:"name"`
	Properties Properties `json:"properties"`
}

type ResourceType struct {
	Name      string `json:"name"`
	ScopeType int    `json:"scopeType"`
	Body      Ref    `json:"body"`
	Flags     int    `json:"flags"`
}

func (StringType) Kind() string        { return "StringType" }
func (IntegerType) Kind() string       { return "IntegerType" }
func (BooleanType) Kind() string       { return "BooleanType" }
func (StringLiteralType) Kind() string { return "StringLiteralType" }
func (UnionType) Kind() string         { return "UnionType" }
func (ArrayType) Kind() string         { return "ArrayType" }
func (ObjectType) Kind() string        { return "ObjectType" }
func (ResourceType) Kind() string      { return "ResourceType" }

// flatten renders v as a JSON object with a leading "$type" discriminator.
func flatten(kind string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	head := `{"$type":` + strconv.Quote(kind)
	if bytes.Equal(body, []byte("{}")) {
		return []byte(head + "}"), nil
	}
	return []byte(head + "," + string(body[1:])), nil
}

func (n StringType) MarshalJSON() ([]byte, error) {
	type alias StringType
	return flatten(n.Kind(), alias(n))
}

func (n IntegerType) MarshalJSON() ([]byte, error) { return flatten(n.Kind(), struct{}{}) }
func (n BooleanType) MarshalJSON() ([]byte, error) { return flatten(n.Kind(), struct{}{}) }

func (n StringLiteralType) MarshalJSON() ([]byte, error) {
	type alias StringLiteralType
	return flatten(n.Kind(), alias(n))
}

func (n UnionType) MarshalJSON() ([]byte, error) {
	type alias UnionType
	return flatten(n.Kind(), alias(n))
}

func (n ArrayType) MarshalJSON() ([]byte, error) {
	type alias ArrayType
	return flatten(n.Kind(), alias(n))
}

func (n ObjectType) MarshalJSON() ([]byte, error) {
	type alias ObjectType
	return flatten(n.Kind(), alias(n))
}

func (n ResourceType) MarshalJSON() ([]byte, error) {
	type alias ResourceType
	return flatten(n.Kind(), alias(n))
}

func (ps Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range ps {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(struct {
			Type        Ref           `json:"type"`
			Flags       PropertyFlags `json:"flags"`
			Description string        `json:"description,omitempty"`
		}{p.Type, p.Flags, p.Description})
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
