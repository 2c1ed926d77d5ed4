package xmlsec

import "errors"

// Error kinds returned by the KeyInfo dispatch engine and its handlers.
// Callers match against these with errors.Is; handlers wrap them with
// fmt.Errorf("...: %w", ErrXxx) to attach the offending node or attribute.
var (
	ErrInvalidNode      = errors.New("xmlsec: invalid node")
	ErrInvalidAttribute = errors.New("xmlsec: invalid attribute")
	ErrInvalidContent   = errors.New("xmlsec: invalid content")
	ErrInvalidKeyData   = errors.New("xmlsec: invalid key data")
	ErrUnexpectedNode   = errors.New("xmlsec: unexpected node")
	ErrMaxLevelExceeded = errors.New("xmlsec: max level exceeded")
	ErrTypeMismatch     = errors.New("xmlsec: type mismatch")
	ErrDisabled         = errors.New("xmlsec: disabled")
)
