package frontend

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// text is a YAML scalar with the position of its first character.
type text struct {
	Value  string
	Line   int
	Column int
	Quoted bool
	Set    bool
}

func (t *text) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar", n.Line)
	}
	*t = text{
		Value:  n.Value,
		Line:   n.Line,
		Column: n.Column,
		Quoted: n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0,
		Set:    true,
	}
	return nil
}

type fileModel struct {
	Classes []classModel `yaml:"classes"`
}

type classModel struct {
	Name        text          `yaml:"name"`
	Interface   bool          `yaml:"interface"`
	TypeParams  []text        `yaml:"type_params"`
	Extends     []text        `yaml:"extends"`
	Annotations []text        `yaml:"annotations"`
	Fields      []fieldModel  `yaml:"fields"`
	Methods     []methodModel `yaml:"methods"`
}

type fieldModel struct {
	Name        text   `yaml:"name"`
	Type        text   `yaml:"type"`
	Static      bool   `yaml:"static"`
	Init        text   `yaml:"init"`
	Annotations []text `yaml:"annotations"`
}

type methodModel struct {
	Name        text         `yaml:"name"`
	TypeParams  []text       `yaml:"type_params"`
	Params      []text       `yaml:"params"`
	Returns     text         `yaml:"returns"`
	Receiver    text         `yaml:"receiver"`
	Static      bool         `yaml:"static"`
	Pure        bool         `yaml:"pure"`
	Annotations []text       `yaml:"annotations"`
	Body        *[]stmtModel `yaml:"body"`
}

// stmtModel is either a one-line statement string or a control block.
type stmtModel struct {
	Line  text         `yaml:"-"`
	If    text         `yaml:"if"`
	Then  []stmtModel  `yaml:"then"`
	Else  *[]stmtModel `yaml:"else"`
	While text         `yaml:"while"`
	Do    []stmtModel  `yaml:"do"`
	Block *[]stmtModel `yaml:"block"`
	line  int
}

var stmtKeys = map[string]bool{"if": true, "then": true, "else": true, "while": true, "do": true, "block": true}

func (s *stmtModel) UnmarshalYAML(n *yaml.Node) error {
	s.line = n.Line
	if n.Kind == yaml.ScalarNode {
		return n.Decode(&s.Line)
	}
	if n.Kind == yaml.MappingNode {
		for i := 0; i < len(n.Content); i += 2 {
			if k := n.Content[i]; !stmtKeys[k.Value] {
				return fmt.Errorf("line %d: unknown statement key %q", k.Line, k.Value)
			}
		}
	}
	type plain stmtModel
	var p plain
	if err := n.Decode(&p); err != nil {
		return err
	}
	p.line = n.Line
	*s = stmtModel(p)
	return nil
}
