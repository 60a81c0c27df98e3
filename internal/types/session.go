package types

// Session identifies one master/slave fuzzing run against a single
// emulated target. All instances of a session share OutputDir.
type Session struct {
	ID           string `json:"id"`
	TargetConfig string `json:"target_config"`
	TargetName   string `json:"target_name"`
	OutputDir    string `json:"output_dir"`
}
