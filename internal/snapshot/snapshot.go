// Package snapshot encodes the whole process state into a single versioned
// blob and decodes it back.
//
// Layout: the 4-byte magic "SPST" followed by a CBOR map (integer keys,
// core deterministic ordering) carrying the format version, the counter and
// every user record. Vectors are packed as little-endian float32 byte strings.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/danielpatrickdp/spiral-state/internal/profile"
)

// CurrentVersion is the only format version Decode accepts.
const CurrentVersion uint16 = 1

var magic = []byte("SPST")

// ErrMalformed wraps every decode failure.
var ErrMalformed = errors.New("malformed snapshot")

// #region types
// State is the codec-facing view of the process state.
type State struct {
	Counter uint32
	Users   []profile.Record
}

type envelope struct {
	Version uint16       `cbor:"1,keyasint"`
	Counter uint32       `cbor:"2,keyasint"`
	Users   []userRecord `cbor:"3,keyasint"`
}

type userRecord struct {
	ID             string   `cbor:"1,keyasint"`
	Email          string   `cbor:"2,keyasint"`
	Name           string   `cbor:"3,keyasint"`
	Telegram       string   `cbor:"4,keyasint"`
	Instagram      string   `cbor:"5,keyasint"`
	XAccount       string   `cbor:"6,keyasint"`
	Emotion        []byte   `cbor:"7,keyasint"`
	Spiral         []byte   `cbor:"8,keyasint"`
	EmotionHybrid  float64  `cbor:"9,keyasint"`
	SpiralHybrid   float64  `cbor:"10,keyasint"`
	EmotionHistory [][]byte `cbor:"11,keyasint"`
	SpiralHistory  [][]byte `cbor:"12,keyasint"`
}
// #endregion types

// #region modes
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	opts := cbor.CoreDetEncOptions()
	// Hybrid scores are checked bit-for-bit on decode, so floats stay float64.
	opts.ShortestFloat = cbor.ShortestFloatNone
	opts.NaNConvert = cbor.NaNConvertNone
	opts.InfConvert = cbor.InfConvertNone
	em, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: cbor enc mode: %v", err))
	}
	encMode = em

	dm, err := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
		IndefLength:       cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: cbor dec mode: %v", err))
	}
	decMode = dm
}
// #endregion modes

// #region encode
// Encode serializes s. Users are written in id order so equal states produce
// identical blobs.
func Encode(s State) ([]byte, error) {
	env := envelope{
		Version: CurrentVersion,
		Counter: s.Counter,
		Users:   make([]userRecord, 0, len(s.Users)),
	}
	for _, r := range s.Users {
		u := userRecord{
			ID:            r.ID,
			Email:         r.Email,
			Name:          r.Name,
			Telegram:      r.Telegram,
			Instagram:     r.Instagram,
			XAccount:      r.XAccount,
			Emotion:       encodeVector(r.Emotion[:]),
			Spiral:        encodeVector(r.Spiral[:]),
			EmotionHybrid: r.EmotionHybrid,
			SpiralHybrid:  r.SpiralHybrid,
		}
		for _, e := range r.EmotionHistory {
			u.EmotionHistory = append(u.EmotionHistory, encodeVector(e[:]))
		}
		for _, sp := range r.SpiralHistory {
			u.SpiralHistory = append(u.SpiralHistory, encodeVector(sp[:]))
		}
		env.Users = append(env.Users, u)
	}
	sort.Slice(env.Users, func(i, j int) bool { return env.Users[i].ID < env.Users[j].ID })

	body, err := encMode.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	out := make([]byte, 0, len(magic)+len(body))
	out = append(out, magic...)
	return append(out, body...), nil
}
// #endregion encode

// #region decode
// Decode parses a blob produced by Encode. Every failure wraps ErrMalformed.
// Hybrid scores are not checked here; profile.FromRecord does that.
func Decode(blob []byte) (State, error) {
	if !bytes.HasPrefix(blob, magic) {
		return State{}, fmt.Errorf("%w: missing magic header", ErrMalformed)
	}
	var env envelope
	if err := decMode.Unmarshal(blob[len(magic):], &env); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Version != CurrentVersion {
		return State{}, fmt.Errorf("%w: unsupported version %d", ErrMalformed, env.Version)
	}

	s := State{Counter: env.Counter, Users: make([]profile.Record, 0, len(env.Users))}
	seen := make(map[string]bool, len(env.Users))
	for _, u := range env.Users {
		if seen[u.ID] {
			return State{}, fmt.Errorf("%w: duplicate user %q", ErrMalformed, u.ID)
		}
		seen[u.ID] = true

		r := profile.Record{
			ID:            u.ID,
			Email:         u.Email,
			Name:          u.Name,
			Telegram:      u.Telegram,
			Instagram:     u.Instagram,
			XAccount:      u.XAccount,
			EmotionHybrid: u.EmotionHybrid,
			SpiralHybrid:  u.SpiralHybrid,
		}
		if err := decodeVector(u.Emotion, r.Emotion[:]); err != nil {
			return State{}, fmt.Errorf("%w: user %q emotion: %v", ErrMalformed, u.ID, err)
		}
		if err := decodeVector(u.Spiral, r.Spiral[:]); err != nil {
			return State{}, fmt.Errorf("%w: user %q spiral: %v", ErrMalformed, u.ID, err)
		}
		for i, b := range u.EmotionHistory {
			var e profile.Emotion
			if err := decodeVector(b, e[:]); err != nil {
				return State{}, fmt.Errorf("%w: user %q emotion history %d: %v", ErrMalformed, u.ID, i, err)
			}
			r.EmotionHistory = append(r.EmotionHistory, e)
		}
		for i, b := range u.SpiralHistory {
			var sp profile.Spiral
			if err := decodeVector(b, sp[:]); err != nil {
				return State{}, fmt.Errorf("%w: user %q spiral history %d: %v", ErrMalformed, u.ID, i, err)
			}
			r.SpiralHistory = append(r.SpiralHistory, sp)
		}
		s.Users = append(s.Users, r)
	}
	return s, nil
}
// #endregion decode

// #region vector-encoding
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector fills dst from b, which must hold exactly len(dst) floats.
func decodeVector(b []byte, dst []float32) error {
	if len(b) != len(dst)*4 {
		return fmt.Errorf("vector is %d bytes, want %d", len(b), len(dst)*4)
	}
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return nil
}
// #endregion vector-encoding
