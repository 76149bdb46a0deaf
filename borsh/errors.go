package borsh

import "errors"

var (
	ErrUnexpectedEOF  = errors.New("unexpected end of data")
	ErrInvalidBool    = errors.New("invalid bool value")
	ErrInvalidOption  = errors.New("invalid option tag")
	ErrInvalidUTF8    = errors.New("string is not valid utf-8")
	ErrLengthOverflow = errors.New("length prefix exceeds remaining data")
)
