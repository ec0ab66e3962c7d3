package contract

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

type ArgSpec struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
}

type ProcedureSpec struct {
	Args []ArgSpec `yaml:"args"`
}

// SchemaFile is the top-level structure of a contract schema YAML file.
type SchemaFile struct {
	Procedures map[string]ProcedureSpec `yaml:"procedures"`
}

type compiledProcedure struct {
	names    []string
	patterns []*regexp.Regexp
}

// SchemaEngine accepts a call when its procedure is known, the argument
// count matches and every argument matches its pattern.
type SchemaEngine struct {
	procedures map[string]compiledProcedure
}

const (
	hex64Pattern  = `^[0-9a-fA-F]{64}$`
	amountPattern = `^(0|[1-9][0-9]{0,19})$`
)

// DefaultSchema covers the token and staking procedures.
func DefaultSchema() *SchemaFile {
	return &SchemaFile{
		Procedures: map[string]ProcedureSpec{
			"create_token": {Args: []ArgSpec{
				{Name: "ticker", Pattern: `^[A-Z0-9]{1,10}$`},
				{Name: "supply", Pattern: amountPattern},
				{Name: "decimals", Pattern: `^([0-9]|1[0-9]|20)$`},
			}},
			"create_pos": {Args: []ArgSpec{
				{Name: "fee", Pattern: `^(0|[1-9][0-9]{0,3})$`},
				{Name: "name", Pattern: `^[0-9a-zA-Z_.\-]{1,40}$`},
			}},
			"delegate": {Args: []ArgSpec{
				{Name: "pos_id", Pattern: hex64Pattern},
				{Name: "amount", Pattern: amountPattern},
			}},
			"undelegate": {Args: []ArgSpec{
				{Name: "pos_id", Pattern: hex64Pattern},
				{Name: "amount", Pattern: amountPattern},
			}},
		},
	}
}

// LoadSchema reads a SchemaFile from YAML.
func LoadSchema(path string) (*SchemaFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var schema SchemaFile
	if err := yaml.NewDecoder(file).Decode(&schema); err != nil {
		return nil, fmt.Errorf("decode contract schema: %w", err)
	}
	return &schema, nil
}

func NewSchemaEngine(schema *SchemaFile) (*SchemaEngine, error) {
	e := &SchemaEngine{procedures: make(map[string]compiledProcedure, len(schema.Procedures))}
	for name, spec := range schema.Procedures {
		cp := compiledProcedure{}
		for _, arg := range spec.Args {
			re, err := regexp.Compile(arg.Pattern)
			if err != nil {
				return nil, fmt.Errorf("procedure %s arg %s: %w", name, arg.Name, err)
			}
			cp.names = append(cp.names, arg.Name)
			cp.patterns = append(cp.patterns, re)
		}
		e.procedures[name] = cp
	}
	return e, nil
}

func (e *SchemaEngine) Validate(_ context.Context, call *Call) error {
	proc, ok := e.procedures[call.Procedure]
	if !ok {
		return fmt.Errorf("unknown procedure %q", call.Procedure)
	}
	if len(call.Args) != len(proc.patterns) {
		return fmt.Errorf("%s expects %d args, got %d", call.Procedure, len(proc.patterns), len(call.Args))
	}
	for i, re := range proc.patterns {
		if !re.MatchString(call.Args[i]) {
			return fmt.Errorf("%s: bad %s", call.Procedure, proc.names[i])
		}
	}
	return nil
}
