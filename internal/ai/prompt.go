package ai

import "fmt"

const articlePrompt = `You are a Chinese language teaching assistant. Analyze the following Chinese news article and return a JSON object.

INSTRUCTIONS:
- The first line (TITLE) is the article headline. Process it as a single sentence.
- The remaining text (BODY) is the article content. Split it into individual sentences (split on 。！？ punctuation).
- For each sentence (title and body), produce a list of word-level tokens.
- Each token has:
  - "text": the Chinese word or punctuation mark.
  - "pinyin": the pinyin with tone marks for Chinese words (e.g. "Xí Jìn Píng"), or null for punctuation marks and non-Chinese text (numbers, English words, symbols).
- After the tokens, provide an "english" field with a natural English translation of the full sentence.
- Tokenize at the word level (group characters that form a single word together, like 习近平 or 中国).
- Use proper tone marks (ā á ǎ à, ē é ě è, etc.) not tone numbers.
- For non-Chinese tokens (English words, numbers, symbols like $, %%), set "pinyin" to null.

Return ONLY valid JSON matching this exact schema:
{
  "titleSentence": {
    "tokens": [
      {"text": "习近平", "pinyin": "Xí Jìn Píng"},
      {"text": "访问", "pinyin": "fǎngwèn"},
      {"text": "中国", "pinyin": "Zhōngguó"}
    ],
    "english": "Xi Jinping visits China"
  },
  "sentences": [
    {
      "tokens": [
        {"text": "中国", "pinyin": "Zhōngguó"},
        {"text": "表示", "pinyin": "biǎoshì"},
        {"text": "。", "pinyin": null}
      ],
      "english": "China stated..."
    }
  ]
}

TITLE:
%s

BODY:
%s`

func buildPrompt(title, body string) string {
	return fmt.Sprintf(articlePrompt, title, body)
}
