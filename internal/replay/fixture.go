package replay

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/spiral-state/internal/profile"
)

// #region fixture-types
// Fixture is the top-level YAML structure for a replay fixture.
type Fixture struct {
	Description string          `yaml:"description"`
	Steps       []FixtureStep   `yaml:"steps"`
	Expect      FixtureExpected `yaml:"expect"`
}

// FixtureStep is one operation. Op is one of the Op* constants.
type FixtureStep struct {
	Op          string       `yaml:"op"`
	Value       uint32       `yaml:"value,omitempty"`
	User        *FixtureUser `yaml:"user,omitempty"`
	UserID      string       `yaml:"user_id,omitempty"`
	Vector      []float32    `yaml:"vector,omitempty"`
	ExpectError string       `yaml:"expect_error,omitempty"`
}

// FixtureUser carries the constructor arguments of a profile.
type FixtureUser struct {
	ID        string    `yaml:"id"`
	Email     string    `yaml:"email"`
	Name      string    `yaml:"name"`
	Telegram  string    `yaml:"telegram"`
	Instagram string    `yaml:"instagram"`
	XAccount  string    `yaml:"x_account"`
	Emotion   []float32 `yaml:"emotion"`
	Spiral    []float32 `yaml:"spiral"`
}

// FixtureExpected is checked against the store after the last step.
type FixtureExpected struct {
	Counter uint32                `yaml:"counter"`
	Users   []FixtureExpectedUser `yaml:"users"`
}

// FixtureExpectedUser captures the expected derived values of one profile.
type FixtureExpectedUser struct {
	ID             string  `yaml:"id"`
	EmotionHybrid  float64 `yaml:"emotion_hybrid"`
	SpiralHybrid   float64 `yaml:"spiral_hybrid"`
	EmotionHistory int     `yaml:"emotion_history"`
	SpiralHistory  int     `yaml:"spiral_history"`
}
// #endregion fixture-types

// #region fixture-loader
// LoadFixture reads and parses a YAML fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	return ParseFixture(data)
}

// ParseFixture parses fixture YAML. Unknown keys are rejected.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &f, nil
}

// ToProfile converts a FixtureUser to a domain Profile.
func (u *FixtureUser) ToProfile() (*profile.Profile, error) {
	e, err := toEmotion(u.Emotion)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", u.ID, err)
	}
	s, err := toSpiral(u.Spiral)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", u.ID, err)
	}
	return profile.New(u.ID, u.Email, u.Name, u.Telegram, u.Instagram, u.XAccount, e, s), nil
}

func toEmotion(v []float32) (profile.Emotion, error) {
	var e profile.Emotion
	if len(v) != len(e) {
		return e, fmt.Errorf("emotion has %d components, want %d", len(v), len(e))
	}
	copy(e[:], v)
	return e, nil
}

func toSpiral(v []float32) (profile.Spiral, error) {
	var s profile.Spiral
	if len(v) != len(s) {
		return s, fmt.Errorf("spiral has %d components, want %d", len(v), len(s))
	}
	copy(s[:], v)
	return s, nil
}
// #endregion fixture-loader
