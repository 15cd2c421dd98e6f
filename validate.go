package mcshell

import "fmt"

// Validate enforces the stage schema and the pipeline invariants:
// kind-specific required fields, the allow-list, and the first-stage
// for_each rule (for_each on the first stage needs a non-empty
// InitialInput to fan out over). It returns a *ErrValidation naming the offending stage
// index and field on the first problem found; validation never spawns
// a subprocess or calls a tool server.
func Validate(p Pipeline, allow Allowlist) error {
	if len(p.Stages) == 0 {
		return &ErrValidation{StageIndex: -1, Field: "stages", Reason: "pipeline must contain at least one stage"}
	}

	for i, s := range p.Stages {
		if err := validateStage(i, s, allow); err != nil {
			return err
		}
		if i == 0 && s.ForEach && p.InitialInput == "" {
			return &ErrValidation{
				StageIndex: i,
				Field:      "for_each",
				Reason:     "for_each is not valid on the first stage without initial_input: there is no upstream JSON-lines producer",
			}
		}
		if s.Kind == StagePreview && i == 0 {
			return &ErrValidation{
				StageIndex: i,
				Field:      "kind",
				Reason:     "preview requires an upstream stage",
			}
		}
	}
	return nil
}

func validateStage(i int, s Stage, allow Allowlist) error {
	switch s.Kind {
	case StageTool:
		if s.Name == "" {
			return &ErrValidation{StageIndex: i, Field: "name", Reason: "tool stage requires name"}
		}
		if s.Server == "" {
			return &ErrValidation{StageIndex: i, Field: "server", Reason: "tool stage requires server"}
		}
		if s.Command != "" || len(s.CommandArgs) > 0 || s.Chars != 0 || len(s.Buffers) > 0 {
			return &ErrValidation{StageIndex: i, Field: "kind", Reason: "tool stage carries fields belonging to another stage kind"}
		}

	case StageCommand:
		if s.Command == "" {
			return &ErrValidation{StageIndex: i, Field: "command", Reason: "command stage requires command"}
		}
		if !allow.Contains(s.Command) {
			return &ErrValidation{StageIndex: i, Field: "command", Reason: fmt.Sprintf("%q is not in the allow-list", s.Command)}
		}
		if s.Name != "" || s.Server != "" || len(s.Args) > 0 || s.Chars != 0 || len(s.Buffers) > 0 {
			return &ErrValidation{StageIndex: i, Field: "kind", Reason: "command stage carries fields belonging to another stage kind"}
		}

	case StagePreview:
		if s.Chars <= 0 {
			return &ErrValidation{StageIndex: i, Field: "chars", Reason: "preview requires a positive chars value"}
		}
		if s.Name != "" || s.Server != "" || len(s.Args) > 0 || s.Command != "" || len(s.CommandArgs) > 0 || len(s.Buffers) > 0 || s.ForEach || s.SaveTo != "" {
			return &ErrValidation{StageIndex: i, Field: "kind", Reason: "preview stage carries fields belonging to another stage kind"}
		}

	case StageReadBuffers:
		if len(s.Buffers) == 0 {
			return &ErrValidation{StageIndex: i, Field: "buffers", Reason: "read_buffers requires a non-empty buffers list"}
		}
		if s.Name != "" || s.Server != "" || len(s.Args) > 0 || s.Command != "" || len(s.CommandArgs) > 0 || s.Chars != 0 || s.ForEach || s.SaveTo != "" {
			return &ErrValidation{StageIndex: i, Field: "kind", Reason: "read_buffers stage carries fields belonging to another stage kind"}
		}

	default:
		return &ErrValidation{StageIndex: i, Field: "kind", Reason: fmt.Sprintf("unknown stage kind %q", s.Kind)}
	}
	return nil
}
