package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusPending, StatusChunked, true},
		{StatusChunked, StatusEmbedded, true},
		// 重复投递：同状态重入是允许的
		{StatusChunked, StatusChunked, true},
		{StatusEmbedded, StatusEmbedded, true},
		// 重新摄取已完成的文档
		{StatusEmbedded, StatusChunked, true},
		// 不允许跳过分块阶段
		{StatusPending, StatusEmbedded, false},
		// 没有任何状态可以回到 pending
		{StatusChunked, StatusPending, false},
		{StatusEmbedded, StatusPending, false},
		{StatusPending, StatusPending, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestTransitionSources(t *testing.T) {
	assert.ElementsMatch(t,
		[]Status{StatusPending, StatusChunked, StatusEmbedded},
		TransitionSources(StatusChunked))
	assert.ElementsMatch(t,
		[]Status{StatusChunked, StatusEmbedded},
		TransitionSources(StatusEmbedded))
	assert.Empty(t, TransitionSources(StatusPending))
}
