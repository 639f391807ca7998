package services

import (
	"context"
	"fmt"
	"time"
)

// Delay — сервис ожидания.
type Delay struct{}

// Sleep: sleep(seconds, value?).
//
// Ждёт seconds (число или строка вида "250ms") и возвращает value,
// чтобы задержку можно было вставить в цепочку onSuccess без потери результата.
// Поддерживает отмену через context.
func (Delay) Sleep(ctx context.Context, args ...any) (any, error) {
	d, ok := seconds(arg(args, 0))
	if !ok || d < 0 {
		return nil, fmt.Errorf("%w: delay.sleep: duration must be a non-negative number, got %v", ErrInvalidArgs, arg(args, 0))
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return arg(args, 1), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
