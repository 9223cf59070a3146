package rules

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/teranos/traitmint/errors"
)

// Rule table CSV columns, with aliases for tables written by older tooling
// (prop,value,list_prop_value,rule).
var csvColumns = map[string][]string{
	"trigger_property": {"trigger_property", "prop", "property"},
	"trigger_value":    {"trigger_value", "value"},
	"targets":          {"targets", "list_prop_value", "target_list"},
	"kind":             {"kind", "rule"},
}

// document is the YAML and TOML form of a rule table:
//
//	[[rules]]
//	trigger_property = "Background"
//	trigger_value = "blue"
//	kind = "force"
//	targets = [["FirstLetter", "B"]]
type document struct {
	Rules []ruleDoc `yaml:"rules" toml:"rules"`
}

type ruleDoc struct {
	TriggerProperty string     `yaml:"trigger_property" toml:"trigger_property"`
	TriggerValue    string     `yaml:"trigger_value" toml:"trigger_value"`
	Kind            string     `yaml:"kind" toml:"kind"`
	Targets         [][]string `yaml:"targets" toml:"targets"`
}

// Load reads a rule table, choosing the format by extension:
// .csv, .yaml/.yml, or .toml. An empty path yields an empty table;
// a path that does not exist is an error.
func Load(path string) (*Table, error) {
	if path == "" {
		return Empty(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read rule table %s", path)
	}

	var rules []Rule
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rules, err = ParseCSV(bytes.NewReader(data))
	case ".yaml", ".yml":
		rules, err = ParseYAML(data)
	case ".toml":
		rules, err = ParseTOML(data)
	default:
		return nil, errors.NewConfigurationError("rule table %s: unsupported extension (want .csv, .yaml or .toml)", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "rule table %s", path)
	}

	table, err := NewTable(rules)
	if err != nil {
		return nil, errors.Wrapf(err, "rule table %s", path)
	}
	return table, nil
}

// ParseCSV parses rule table CSV. The targets cell is a list of
// (property, value) pairs, e.g. [("FirstLetter","B")] or [["FirstLetter","B"]].
func ParseCSV(r io.Reader) ([]Rule, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.NewConfigurationError("missing header: %v", err)
	}
	cols := make(map[string]int)
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for canonical, aliases := range csvColumns {
			for _, alias := range aliases {
				if h == alias {
					cols[canonical] = i
				}
			}
		}
	}
	for _, required := range []string{"trigger_property", "trigger_value", "targets", "kind"} {
		if _, ok := cols[required]; !ok {
			return nil, errors.NewConfigurationError("missing %q column", required)
		}
	}

	var rules []Rule
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.NewConfigurationError("line %d: %v", line, err)
		}

		kind, err := ParseKind(record[cols["kind"]])
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		targets, err := ParseTargets(record[cols["targets"]])
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		rules = append(rules, Rule{
			TriggerProperty: strings.TrimSpace(record[cols["trigger_property"]]),
			TriggerValue:    strings.TrimSpace(record[cols["trigger_value"]]),
			Kind:            kind,
			Targets:         targets,
		})
	}
	return rules, nil
}

// ParseYAML parses a YAML rule table. Unknown keys are rejected.
func ParseYAML(data []byte) ([]Rule, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, errors.NewConfigurationError("invalid YAML: %v", err)
	}
	return doc.toRules()
}

// ParseTOML parses a TOML rule table. Unknown keys are rejected.
func ParseTOML(data []byte) ([]Rule, error) {
	var doc document
	md, err := toml.Decode(string(data), &doc)
	if err != nil {
		return nil, errors.NewConfigurationError("invalid TOML: %v", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.NewConfigurationError("unknown key %q", undecoded[0].String())
	}
	return doc.toRules()
}

func (d document) toRules() ([]Rule, error) {
	rules := make([]Rule, 0, len(d.Rules))
	for i, rd := range d.Rules {
		kind, err := ParseKind(rd.Kind)
		if err != nil {
			return nil, errors.Wrapf(err, "rule %d", i+1)
		}
		r := Rule{TriggerProperty: rd.TriggerProperty, TriggerValue: rd.TriggerValue, Kind: kind}
		for _, pair := range rd.Targets {
			if len(pair) != 2 {
				return nil, errors.NewConfigurationError("rule %d: target %v must be a [property, value] pair", i+1, pair)
			}
			r.Targets = append(r.Targets, Target{Property: pair[0], Value: pair[1]})
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// ParseTargets parses a list of quoted (property, value) pairs. Either
// brackets or parentheses may enclose a pair, and either quote style may
// delimit a string. Nothing else is accepted: no expressions, no escapes
// beyond \" and \'. An empty cell is an empty list.
func ParseTargets(s string) ([]Target, error) {
	p := &targetParser{src: strings.TrimSpace(s)}
	if p.src == "" {
		return nil, nil
	}
	targets, err := p.list()
	if err != nil {
		return nil, errors.NewConfigurationError("targets %q: %v", s, err)
	}
	return targets, nil
}

type targetParser struct {
	src string
	pos int
}

func (p *targetParser) list() ([]Target, error) {
	if err := p.expect('['); err != nil {
		return nil, err
	}
	var targets []Target
	if p.peek() == ']' {
		p.pos++
		return targets, p.end()
	}
	for {
		t, err := p.pair()
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
		switch p.next() {
		case ',':
			if p.peek() == ']' {
				p.pos++
				return targets, p.end()
			}
		case ']':
			return targets, p.end()
		default:
			return nil, errors.Newf("expected ',' or ']' at offset %d", p.pos)
		}
	}
}

func (p *targetParser) pair() (Target, error) {
	open := p.next()
	var closer byte
	switch open {
	case '(':
		closer = ')'
	case '[':
		closer = ']'
	default:
		return Target{}, errors.Newf("expected '(' or '[' at offset %d", p.pos)
	}
	prop, err := p.str()
	if err != nil {
		return Target{}, err
	}
	if err := p.expect(','); err != nil {
		return Target{}, err
	}
	value, err := p.str()
	if err != nil {
		return Target{}, err
	}
	if p.peek() == ',' {
		p.pos++
	}
	if err := p.expect(closer); err != nil {
		return Target{}, err
	}
	return Target{Property: prop, Value: value}, nil
}

func (p *targetParser) str() (string, error) {
	quote := p.next()
	if quote != '"' && quote != '\'' {
		return "", errors.Newf("expected quoted string at offset %d", p.pos)
	}
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		p.pos++
		switch {
		case c == '\\' && p.pos < len(p.src) && (p.src[p.pos] == '"' || p.src[p.pos] == '\''):
			b.WriteByte(p.src[p.pos])
			p.pos++
		case c == quote:
			return b.String(), nil
		default:
			b.WriteByte(c)
		}
	}
	return "", errors.New("unterminated string")
}

func (p *targetParser) expect(c byte) error {
	if got := p.next(); got != c {
		return errors.Newf("expected %q at offset %d", c, p.pos)
	}
	return nil
}

// next skips whitespace and consumes one byte; 0 at end of input.
func (p *targetParser) next() byte {
	c := p.peek()
	if c != 0 {
		p.pos++
	}
	return c
}

func (p *targetParser) peek() byte {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *targetParser) end() error {
	if p.peek() != 0 {
		return errors.Newf("trailing input at offset %d", p.pos)
	}
	return nil
}
