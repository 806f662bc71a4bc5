package repository

import "errors"

var (
	// ErrNavigationFailed is returned when a page could not be loaded.
	ErrNavigationFailed = errors.New("navigation failed")
	// ErrWaitTimeout is returned when a wait condition did not hold in time.
	ErrWaitTimeout = errors.New("timed out waiting for element")
	// ErrElementNotFound is returned when a required element is absent.
	ErrElementNotFound = errors.New("element not found")
	// ErrNotInteractable is returned when clicking an element that is not rendered.
	ErrNotInteractable = errors.New("element is not interactable")
)
