package model

import (
	"sync"

	"github.com/YuminosukeSato/forestcover/pkg/errors"
)

// StateManager manages the fitted state of a model in a thread-safe manner.
// Estimators hold it by composition rather than embedding BaseEstimator.
type StateManager struct {
	mu sync.RWMutex

	fitted    bool
	nFeatures int
	nSamples  int
}

// NewStateManager creates a new StateManager instance.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted returns whether the model has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitted
}

// SetFitted marks the model as fitted.
func (s *StateManager) SetFitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = true
}

// Reset resets the fitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = false
	s.nFeatures = 0
	s.nSamples = 0
}

// SetDimensions sets the number of features and samples seen during fitting.
func (s *StateManager) SetDimensions(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nFeatures = nFeatures
	s.nSamples = nSamples
}

// GetDimensions returns the number of features and samples seen during fitting.
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nFeatures, s.nSamples
}

// RequireFitted returns a NotFittedError if the model has not been fitted.
func (s *StateManager) RequireFitted(modelName, method string) error {
	if !s.IsFitted() {
		return errors.NewNotFittedError(modelName, method)
	}
	return nil
}

// CheckPredictInput verifies that the model is fitted and that X has the
// number of columns seen during Fit.
func (s *StateManager) CheckPredictInput(modelName, method string, X interface{ Dims() (int, int) }) error {
	if err := s.RequireFitted(modelName, method); err != nil {
		return err
	}
	_, c := X.Dims()
	nFeatures, _ := s.GetDimensions()
	if c != nFeatures {
		return errors.NewDimensionError(modelName+"."+method, nFeatures, c, 1)
	}
	return nil
}
