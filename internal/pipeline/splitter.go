package pipeline

import "strings"

// SplitText 将长文本按固定窗口加重叠切分为分块。
//
// 从偏移 0 开始取 chunkSize 个字符；若窗口右沿不在文本末尾，则从右沿向左
// 回退到最近的空格以避免截断单词，窗口内没有空格时在 chunkSize 处硬切。
// 下一个窗口从 end - overlap 处开始，直至消费完整个文本。
// 空白文本返回 nil；长度不超过 chunkSize 的文本返回单个分块。
func SplitText(text string, chunkSize, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + chunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		// 向左回退到最近的空格，避免在单词中间切断
		cut := end
		for cut > start && runes[cut] != ' ' {
			cut--
		}
		if cut == start {
			// 整个窗口没有空格，硬切
			cut = end
		}

		chunks = append(chunks, string(runes[start:cut]))

		next := cut - overlap
		if next <= start {
			// 窗口必须前进，否则重叠会造成死循环
			next = cut
		}
		start = next
	}
	return chunks
}
