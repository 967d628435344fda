package norad

import "errors"

// Ошибки пропагации.
var (
	// ErrInvalidElements — элементы вне области определения модели.
	ErrInvalidElements = errors.New("invalid orbital elements")

	// ErrDecayed — орбита стала нефизичной (вход в атмосферу, e >= 1).
	ErrDecayed = errors.New("satellite has decayed")

	// ErrResonanceDiverged — интегратор резонанса превысил лимит шагов.
	ErrResonanceDiverged = errors.New("resonance integration exceeded step limit")

	// ErrUnknownModel — неизвестная модель пропагации.
	ErrUnknownModel = errors.New("unknown propagation model")
)
