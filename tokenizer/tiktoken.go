package tokenizer

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/BaSui01/colloquy/types"
)

// 模型名到 tiktoken 编码的映射，未命中时按前缀匹配，再未命中用 cl100k_base。
var modelEncodings = map[string]string{
	"gpt-4o":        "o200k_base",
	"gpt-4o-mini":   "o200k_base",
	"gpt-4-turbo":   "cl100k_base",
	"gpt-4":         "cl100k_base",
	"gpt-3.5-turbo": "cl100k_base",
}

const defaultEncoding = "cl100k_base"

// Tiktoken counts tokens with a lazily initialized tiktoken encoding.
// Encoding data may be downloaded on first use; when initialization fails,
// counting falls back to the CJK-aware estimator so callers never see an
// error from a count.
type Tiktoken struct {
	encoding string
	fallback *types.EstimateTokenizer
	logger   *zap.Logger

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

// ForModel returns a tokenizer for the given model name.
func ForModel(model string, logger *zap.Logger) *Tiktoken {
	encoding, ok := modelEncodings[model]
	if !ok {
		for prefix, enc := range modelEncodings {
			if strings.HasPrefix(model, prefix) {
				encoding, ok = enc, true
				break
			}
		}
	}
	if !ok {
		encoding = defaultEncoding
	}
	return ForEncoding(encoding, logger)
}

// ForEncoding returns a tokenizer for an explicit tiktoken encoding name.
func ForEncoding(encoding string, logger *zap.Logger) *Tiktoken {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tiktoken{
		encoding: encoding,
		fallback: types.NewEstimateTokenizer(),
		logger:   logger,
	}
}

func (t *Tiktoken) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = err
			return
		}
		t.enc = enc
	})
	return t.initErr
}

// CountTokens returns the token count for text.
func (t *Tiktoken) CountTokens(text string) int {
	if err := t.init(); err != nil {
		t.logger.Warn("tiktoken unavailable, falling back to estimation",
			zap.String("encoding", t.encoding), zap.Error(err))
		return t.fallback.CountTokens(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

// CountMessageTokens returns the token count for a message including the
// per-message chat framing overhead.
func (t *Tiktoken) CountMessageTokens(msg types.Message) int {
	if err := t.init(); err != nil {
		return t.fallback.CountMessageTokens(msg)
	}
	// 每条消息的对话帧开销与 estimator 保持一致
	return t.CountTokens(msg.Content) + 4
}

var _ types.Tokenizer = (*Tiktoken)(nil)
