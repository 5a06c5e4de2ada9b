package workerpool

import (
	"context"
	"fmt"
)

// Submitter 可提交任务的池，*Pool 实现了它
type Submitter interface {
	Submit(task func()) error
}

// ItemError 批处理中某一项的失败
type ItemError struct {
	Index int
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// Map 把 items 并发交给 fn 处理，结果按输入顺序返回。
//
// 任意一项失败时返回下标最小的那个错误（*ItemError），其余成功项的结果仍保留在
// 返回切片对应位置，调用方可据此清理。ctx 取消后尚未开始的项直接以 ctx.Err() 失败。
func Map[T, R any](ctx context.Context, pool Submitter, items []T, fn func(ctx context.Context, item T) (R, error)) ([]R, error) {
	type result struct {
		index int
		value R
		err   error
	}

	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}

	resultCh := make(chan result, len(items))
	for i, item := range items {
		idx, it := i, item
		err := pool.Submit(func() {
			r := result{index: idx}
			// fn panic 时也要送回结果
			defer func() {
				if p := recover(); p != nil {
					r.err = fmt.Errorf("panic: %v", p)
				}
				resultCh <- r
			}()
			if r.err = ctx.Err(); r.err != nil {
				return
			}
			r.value, r.err = fn(ctx, it)
		})
		if err != nil {
			resultCh <- result{index: idx, err: fmt.Errorf("failed to submit task: %w", err)}
		}
	}

	var first *ItemError
	for range items {
		r := <-resultCh
		if r.err != nil {
			if first == nil || r.index < first.Index {
				first = &ItemError{Index: r.index, Err: r.err}
			}
			continue
		}
		results[r.index] = r.value
	}

	if first != nil {
		return results, first
	}
	return results, nil
}
