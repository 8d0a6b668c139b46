package repository

import "errors"

// ErrRecordNotFound indicates no analysis record exists for the image
var ErrRecordNotFound = errors.New("analysis record not found")
