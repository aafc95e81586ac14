package engine

import "strings"

// SplitStatements splits sql on semicolons that are not inside quotes or
// comments. Each statement is trimmed. Statements that hold nothing but
// whitespace or comments are dropped.
func SplitStatements(sql string) []string {
	var (
		out   []string
		start int
		quote byte
		code  bool
	)

	flush := func(end int) {
		if stmt := strings.TrimSpace(sql[start:end]); code && stmt != "" {
			out = append(out, stmt)
		}
		code = false
	}

	for i := 0; i < len(sql); i++ {
		c := sql[i]

		if quote != 0 {
			if c == quote {
				// doubled quote is an escaped quote
				if i+1 < len(sql) && sql[i+1] == quote {
					i++
					continue
				}
				quote = 0
			}
			continue
		}

		switch {
		case c == '\'' || c == '"' || c == '`':
			quote = c
			code = true
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			if nl := strings.IndexByte(sql[i:], '\n'); nl >= 0 {
				i += nl
			} else {
				i = len(sql)
			}
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			if end := strings.Index(sql[i+2:], "*/"); end >= 0 {
				i += end + 3
			} else {
				i = len(sql)
			}
		case c == ';':
			flush(i)
			start = i + 1
		case c != ' ' && c != '\t' && c != '\n' && c != '\r':
			code = true
		}
	}
	if start < len(sql) {
		flush(len(sql))
	}

	return out
}
