package domain

import "errors"

var (
	ErrAlreadyInRoom  = errors.New("already in room")
	ErrNotInRoom      = errors.New("not in room")
	ErrEmptyRoom      = errors.New("room id empty")
	ErrRoomIDTooLong  = errors.New("room id too long")
	ErrPeerTagTooLong = errors.New("peer id too long")
	ErrRecordNotFound = errors.New("session record not found")
)
