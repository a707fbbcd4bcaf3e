package model

import (
	"sync"

	"github.com/YuminosukeSato/regpipe/pkg/errors"
)

// ModelState is the part of an estimator that says whether it was fitted
// and on what shape. Snapshots embed it so gob restores it unchanged.
type ModelState struct {
	Fitted    bool `json:"fitted"`
	NFeatures int  `json:"n_features,omitempty"`
	NSamples  int  `json:"n_samples,omitempty"`
}

// StateManager guards a ModelState. Estimators hold one by composition.
//
// Readers accept a nil receiver: gob drops a pointer to an all-zero value,
// so an unfitted preprocessor comes back from disk with State == nil.
type StateManager struct {
	Current ModelState
	mu      sync.RWMutex
}

// NewStateManager 未学習状態のStateManagerを返す
func NewStateManager() *StateManager {
	return &StateManager{}
}

func (s *StateManager) snapshot() ModelState {
	if s == nil {
		return ModelState{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Current
}

func (s *StateManager) update(fn func(*ModelState)) {
	s.mu.Lock()
	fn(&s.Current)
	s.mu.Unlock()
}

// IsFitted reports whether Fit has completed.
func (s *StateManager) IsFitted() bool { return s.snapshot().Fitted }

// SetFitted marks the estimator as fitted.
func (s *StateManager) SetFitted() {
	s.update(func(st *ModelState) { st.Fitted = true })
}

// SetDimensions records the training shape.
func (s *StateManager) SetDimensions(nFeatures, nSamples int) {
	s.update(func(st *ModelState) {
		st.NFeatures = nFeatures
		st.NSamples = nSamples
	})
}

// GetDimensions returns the training shape (features, samples).
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	st := s.snapshot()
	return st.NFeatures, st.NSamples
}

// Reset forgets the fit.
func (s *StateManager) Reset() {
	s.update(func(st *ModelState) { *st = ModelState{} })
}

// RequireFitted returns a NotFittedError for modelName.method before Fit.
func (s *StateManager) RequireFitted(modelName, method string) error {
	if s.IsFitted() {
		return nil
	}
	return errors.NewNotFittedError(modelName, method)
}

// CheckFeatures は X の列数が学習時の特徴量数と一致するか検証する
func (s *StateManager) CheckFeatures(op string, X interface{ Dims() (int, int) }) error {
	_, cols := X.Dims()
	if want, _ := s.GetDimensions(); cols != want {
		return errors.NewDimensionError(op, want, cols, 1)
	}
	return nil
}

// GetState returns a copy of the current state for a snapshot.
func (s *StateManager) GetState() ModelState { return s.snapshot() }

// SetState restores a state taken with GetState.
func (s *StateManager) SetState(state ModelState) {
	s.update(func(st *ModelState) { *st = state })
}
