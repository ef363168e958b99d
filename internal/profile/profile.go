package profile

import (
	"errors"
	"fmt"
	"math"
)

// #region vector-types
const (
	EmotionDims  = 21
	SpiralLevels = 8
)

// Emotion is a 21-component emotional-state weight vector.
type Emotion [EmotionDims]float32

// Spiral is an 8-component developmental-stage weight vector.
type Spiral [SpiralLevels]float32
// #endregion vector-types

// ErrHybridMismatch is returned by FromRecord when a stored hybrid score does
// not match the score recomputed from its vector.
var ErrHybridMismatch = errors.New("hybrid score does not match vector")

// #region profile-struct
// Profile holds one user's identity plus the emotion and spiral vectors,
// their hybrid scores and append-only histories.
// Identity fields are fixed at construction; scores change only through
// UpdateEmotion and UpdateSpiral.
type Profile struct {
	id        string
	email     string
	name      string
	telegram  string
	instagram string
	xAccount  string

	emotion       Emotion
	spiral        Spiral
	emotionHybrid float64
	spiralHybrid  float64

	emotionHistory []Emotion
	spiralHistory  []Spiral
}
// #endregion profile-struct

// #region constructor
// New builds a profile and computes both hybrid scores from the initial vectors.
func New(id, email, name, telegram, instagram, xAccount string, emotion Emotion, spiral Spiral) *Profile {
	return &Profile{
		id:            id,
		email:         email,
		name:          name,
		telegram:      telegram,
		instagram:     instagram,
		xAccount:      xAccount,
		emotion:       emotion,
		spiral:        spiral,
		emotionHybrid: Hybrid(emotion[:]),
		spiralHybrid:  Hybrid(spiral[:]),
	}
}
// #endregion constructor

// #region hybrid
// Hybrid returns the index-weighted average Σ(i·v[i]) / Σ(v[i]).
// A zero component sum yields 0. Inputs are not validated: negative and
// unbounded weights pass straight through the formula.
func Hybrid(v []float32) float64 {
	var weighted, total float64
	for i, f := range v {
		weighted += float64(i) * float64(f)
		total += float64(f)
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}
// #endregion hybrid

// #region updates
// UpdateEmotion archives the current emotion vector and replaces it.
func (p *Profile) UpdateEmotion(next Emotion) {
	p.emotionHistory = append(p.emotionHistory, p.emotion)
	p.emotion = next
	p.emotionHybrid = Hybrid(next[:])
}

// UpdateSpiral archives the current spiral vector and replaces it.
func (p *Profile) UpdateSpiral(next Spiral) {
	p.spiralHistory = append(p.spiralHistory, p.spiral)
	p.spiral = next
	p.spiralHybrid = Hybrid(next[:])
}
// #endregion updates

// #region accessors
func (p *Profile) ID() string        { return p.id }
func (p *Profile) Email() string     { return p.email }
func (p *Profile) Name() string      { return p.name }
func (p *Profile) Telegram() string  { return p.telegram }
func (p *Profile) Instagram() string { return p.instagram }
func (p *Profile) XAccount() string  { return p.xAccount }

func (p *Profile) Emotion() Emotion       { return p.emotion }
func (p *Profile) Spiral() Spiral         { return p.spiral }
func (p *Profile) EmotionHybrid() float64 { return p.emotionHybrid }
func (p *Profile) SpiralHybrid() float64  { return p.spiralHybrid }

// EmotionHistory returns a copy of the archived emotion vectors, oldest first.
func (p *Profile) EmotionHistory() []Emotion {
	return append([]Emotion(nil), p.emotionHistory...)
}

// SpiralHistory returns a copy of the archived spiral vectors, oldest first.
func (p *Profile) SpiralHistory() []Spiral {
	return append([]Spiral(nil), p.spiralHistory...)
}
// #endregion accessors

// #region record
// Record is the flat, fully exported form of a Profile used for persistence.
type Record struct {
	ID             string
	Email          string
	Name           string
	Telegram       string
	Instagram      string
	XAccount       string
	Emotion        Emotion
	Spiral         Spiral
	EmotionHybrid  float64
	SpiralHybrid   float64
	EmotionHistory []Emotion
	SpiralHistory  []Spiral
}

// Record returns a deep copy of the profile's fields.
func (p *Profile) Record() Record {
	return Record{
		ID:             p.id,
		Email:          p.email,
		Name:           p.name,
		Telegram:       p.telegram,
		Instagram:      p.instagram,
		XAccount:       p.xAccount,
		Emotion:        p.emotion,
		Spiral:         p.spiral,
		EmotionHybrid:  p.emotionHybrid,
		SpiralHybrid:   p.spiralHybrid,
		EmotionHistory: p.EmotionHistory(),
		SpiralHistory:  p.SpiralHistory(),
	}
}

// Clone returns an independent deep copy.
func (p *Profile) Clone() *Profile {
	c := *p
	c.emotionHistory = p.EmotionHistory()
	c.spiralHistory = p.SpiralHistory()
	return &c
}

// FromRecord rebuilds a Profile from a persisted record. The stored hybrid
// scores must be bit-identical to the ones recomputed from the vectors.
func FromRecord(r Record) (*Profile, error) {
	p := New(r.ID, r.Email, r.Name, r.Telegram, r.Instagram, r.XAccount, r.Emotion, r.Spiral)
	if math.Float64bits(p.emotionHybrid) != math.Float64bits(r.EmotionHybrid) {
		return nil, fmt.Errorf("user %s emotion: %w", r.ID, ErrHybridMismatch)
	}
	if math.Float64bits(p.spiralHybrid) != math.Float64bits(r.SpiralHybrid) {
		return nil, fmt.Errorf("user %s spiral: %w", r.ID, ErrHybridMismatch)
	}
	p.emotionHistory = append([]Emotion(nil), r.EmotionHistory...)
	p.spiralHistory = append([]Spiral(nil), r.SpiralHistory...)
	return p, nil
}
// #endregion record
