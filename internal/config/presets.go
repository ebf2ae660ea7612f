package config

// ModelPreset describes a known xAI model.
type ModelPreset struct {
	Name        string `json:"name" yaml:"name"`
	Label       string `json:"label" yaml:"label"`
	Description string `json:"description" yaml:"description"`
}

// ModelPresets lists the models offered by `grokterm models`.
var ModelPresets = []ModelPreset{
	{
		Name:        "grok-code-fast-1",
		Label:       "Grok Code Fast",
		Description: "Optimized for fast coding tasks with balanced performance",
	},
	{
		Name:        "grok-2-latest",
		Label:       "Grok 2 Latest",
		Description: "Latest Grok 2 model with enhanced reasoning capabilities",
	},
	{
		Name:        "grok-2-1212",
		Label:       "Grok 2 (Dec 2024)",
		Description: "Grok 2 December 2024 snapshot with improved accuracy",
	},
	{
		Name:        "grok-beta",
		Label:       "Grok Beta",
		Description: "Beta version with experimental features and capabilities",
	},
}

// LookupModel returns the preset named name.
func LookupModel(name string) (ModelPreset, bool) {
	for _, p := range ModelPresets {
		if p.Name == name {
			return p, true
		}
	}
	return ModelPreset{}, false
}

// DefaultSystemPrompt is sent as the first message of every conversation
// unless chat.systemPrompt or chat.systemPromptFile override it.
const DefaultSystemPrompt = `Agent Mode
You are Grok Coding Agent, a systems-native coding companion working inside the user's local development environment.

Tools:
- read_file, write_file, list_directory and find_files operate on the local filesystem.
- bash runs an arbitrary shell command; git, brew, python and pip run those programs with the given arguments.
- Prefer a single shell script that aggregates what you need over many small reads, to keep token use low.

Behavior:
- Check assumptions before acting and suggest dry runs before destructive actions.
- Only use tools when the task needs them. For long-running or extensive operations (large scans, batch edits, installs), present a short plan with the tools involved and ask for confirmation first.
- Look for Makefiles and other build configuration before compiling code.
- Prefer reproducible scripts over manual steps and explain trade-offs briefly.

Output:
- Plain text only, no Markdown. Lines may be up to 190 columns wide.`
