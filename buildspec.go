package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// buildspec.go is a declarative YAML front end onto ELFModel, letting the
// `elfasm build` CLI subcommand script a Scenario-A-style minimal
// executable without writing Go. It is not present in original_source/
// verbatim but is directly enabled by it: the C builder's
// ELFBuilderNewSec/NewProg/NewSymtab/SymtabAdd64 calls are a natural 1:1
// target for a scripted document (see SPEC_FULL.md "Supplemented
// features"). Parsed via spf13/viper, which wraps gopkg.in/yaml.v3.

// SectionSpec describes one Section to create.
type SectionSpec struct {
	Name  string   `mapstructure:"name"`
	Type  string   `mapstructure:"type"`
	Flags []string `mapstructure:"flags"`
	Bytes string   `mapstructure:"bytes"` // hex-encoded payload, e.g. "bb2a000000b801000000cd80"
}

// ProgramSpec describes one Program header to create.
type ProgramSpec struct {
	Type    string   `mapstructure:"type"`
	Flags   []string `mapstructure:"flags"`
	Align   uint64   `mapstructure:"align"`
	Section string   `mapstructure:"section"` // name of the SectionSpec supplying Data
}

// SymbolSpec describes one symbol to add to the implicit .symtab.
type SymbolSpec struct {
	Name    string `mapstructure:"name"`
	Bind    string `mapstructure:"bind"`
	Type    string `mapstructure:"type"`
	Section string `mapstructure:"section"` // "" => SHN_UNDEF
	Value   uint64 `mapstructure:"value"`
}

// BuildSpec is the top-level document shape.
type BuildSpec struct {
	Machine  string        `mapstructure:"machine"`
	Sections []SectionSpec `mapstructure:"sections"`
	Programs []ProgramSpec `mapstructure:"programs"`
	Symbols  []SymbolSpec  `mapstructure:"symbols"`
}

// LoadBuildSpec reads and parses a YAML build descriptor at path.
func LoadBuildSpec(path string) (*BuildSpec, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("elfasm: reading buildspec %s: %w", path, err)
	}
	return unmarshalBuildSpec(v)
}

// parseBuildSpecYAML parses an in-memory YAML document, used directly by
// tests to avoid touching the filesystem.
func parseBuildSpecYAML(yamlDoc []byte) (*BuildSpec, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(yamlDoc)); err != nil {
		return nil, fmt.Errorf("elfasm: parsing buildspec: %w", err)
	}
	return unmarshalBuildSpec(v)
}

func unmarshalBuildSpec(v *viper.Viper) (*BuildSpec, error) {
	var spec BuildSpec
	if err := v.Unmarshal(&spec); err != nil {
		return nil, fmt.Errorf("elfasm: unmarshalling buildspec: %w", err)
	}
	return &spec, nil
}

func parseMachine(name string) (uint16, error) {
	switch strings.ToLower(name) {
	case "x86_64", "amd64":
		return EM_X86_64, nil
	case "386", "i386", "x86":
		return EM_386, nil
	case "arm":
		return EM_ARM, nil
	case "aarch64", "arm64":
		return EM_AARCH64, nil
	case "riscv", "riscv64":
		return EM_RISCV, nil
	default:
		return 0, fmt.Errorf("elfasm: unknown machine %q", name)
	}
}

func parseSHType(name string) (uint32, error) {
	switch strings.ToUpper(name) {
	case "NULL":
		return SHT_NULL, nil
	case "PROGBITS":
		return SHT_PROGBITS, nil
	case "SYMTAB":
		return SHT_SYMTAB, nil
	case "STRTAB":
		return SHT_STRTAB, nil
	case "NOBITS":
		return SHT_NOBITS, nil
	default:
		return 0, fmt.Errorf("elfasm: unsupported section type %q", name)
	}
}

func parsePTType(name string) (uint32, error) {
	switch strings.ToUpper(name) {
	case "LOAD":
		return PT_LOAD, nil
	case "DYNAMIC":
		return PT_DYNAMIC, nil
	case "INTERP":
		return PT_INTERP, nil
	case "NOTE":
		return PT_NOTE, nil
	case "PHDR":
		return PT_PHDR, nil
	case "TLS":
		return PT_TLS, nil
	default:
		return 0, fmt.Errorf("elfasm: unsupported program type %q", name)
	}
}

func parseFlagSet(flags []string, table map[string]uint32) uint32 {
	var v uint32
	for _, f := range flags {
		v |= table[strings.ToUpper(f)]
	}
	return v
}

var shFlagTable = map[string]uint32{"WRITE": SHF_WRITE, "ALLOC": SHF_ALLOC, "EXECINSTR": SHF_EXECINSTR}
var pFlagTable = map[string]uint32{"X": PF_X, "W": PF_W, "R": PF_R}

func parseSTBind(name string) (byte, error) {
	switch strings.ToUpper(name) {
	case "LOCAL":
		return STB_LOCAL, nil
	case "GLOBAL":
		return STB_GLOBAL, nil
	case "WEAK":
		return STB_WEAK, nil
	default:
		return 0, fmt.Errorf("elfasm: unsupported symbol binding %q", name)
	}
}

func parseSTType(name string) (byte, error) {
	switch strings.ToUpper(name) {
	case "NOTYPE":
		return STT_NOTYPE, nil
	case "OBJECT":
		return STT_OBJECT, nil
	case "FUNC":
		return STT_FUNC, nil
	case "SECTION":
		return STT_SECTION, nil
	case "FILE":
		return STT_FILE, nil
	case "COMMON":
		return STT_COMMON, nil
	default:
		return 0, fmt.Errorf("elfasm: unsupported symbol type %q", name)
	}
}

// Build materializes a Builder from the spec, ready for Assemble.
func (bs *BuildSpec) Build() (*Builder, error) {
	machine, err := parseMachine(bs.Machine)
	if err != nil {
		return nil, err
	}
	b := New(machine)

	sectionsByName := make(map[string]*Section, len(bs.Sections))
	for _, ss := range bs.Sections {
		shType, err := parseSHType(ss.Type)
		if err != nil {
			return nil, err
		}
		var data *Data
		if sectionDataRequirementFor(shType) != dataForbidden {
			data = b.NewData()
			if ss.Bytes != "" {
				raw, err := hex.DecodeString(ss.Bytes)
				if err != nil {
					return nil, fmt.Errorf("elfasm: section %q: bad hex payload: %w", ss.Name, err)
				}
				data.Buffer().WriteBytes(raw)
			}
		}
		sec := b.NewSection(ss.Name, shType, data)
		sec.SetFlags(parseFlagSet(ss.Flags, shFlagTable))
		sectionsByName[ss.Name] = sec
	}

	for _, ps := range bs.Programs {
		ptType, err := parsePTType(ps.Type)
		if err != nil {
			return nil, err
		}
		var data *Data
		if ps.Section != "" {
			sec, ok := sectionsByName[ps.Section]
			if !ok {
				return nil, fmt.Errorf("elfasm: program references unknown section %q", ps.Section)
			}
			data = sec.data
		}
		b.NewProgram(ptType, parseFlagSet(ps.Flags, pFlagTable), ps.Align, data)
	}

	if len(bs.Symbols) > 0 {
		symtab := b.NewSymtab(b.strtab, ".symtab")
		for _, sy := range bs.Symbols {
			bind, err := parseSTBind(sy.Bind)
			if err != nil {
				return nil, err
			}
			typ, err := parseSTType(sy.Type)
			if err != nil {
				return nil, err
			}
			var defSec *Section
			if sy.Section != "" {
				sec, ok := sectionsByName[sy.Section]
				if !ok {
					return nil, fmt.Errorf("elfasm: symbol %q references unknown section %q", sy.Name, sy.Section)
				}
				defSec = sec
			}
			b.SymtabAdd(symtab, defSec, sy.Name, bind, typ, sy.Value)
		}
	}

	return b, nil
}
