package util

import "errors"

var (
	ErrNoExtractableText = errors.New("no extractable text found in PDF")
	ErrEmptyText         = errors.New("cannot embed empty text")

	// Provider failure sentinels. Providers wrap their errors in one of
	// these so ClassifyError can bucket them without message matching.
	ErrQuotaExhausted = errors.New("provider quota exhausted")
	ErrRateLimited    = errors.New("provider rate limited")
	ErrTransient      = errors.New("transient provider error")
	ErrPermanent      = errors.New("permanent provider error")
)
