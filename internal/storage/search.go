package storage

import (
	"context"
	"strings"
	"unicode"

	"clipkeep/internal/apperr"
	"clipkeep/internal/clip"
)

// MatchAll 表示只按过滤条件查询 / MatchAll means "filters only, no text"
const MatchAll = "*"

// Search 在 FTS 索引上查询并按过滤条件取交集，按相关度再按时间排序。
// Search runs query against the full-text index, intersects the filters and
// orders by relevance, then recency. Every whitespace-separated word is
// matched as a literal token, so AND / OR / NOT and quotes carry no query
// syntax. A blank query or "*" matches everything the filters allow.
func (s *SQLiteStore) Search(ctx context.Context, query string, filters clip.SearchFilters, limit int) ([]clip.Item, error) {
	var (
		where []string
		args  []any
		from  = "clipboard_items ci"
		order = "ci.copied_at DESC, ci.id DESC"
	)

	query = strings.TrimSpace(query)
	if query != "" && query != MatchAll {
		match := sanitizeFTS(query)
		if match == "" {
			return []clip.Item{}, nil
		}
		from = "clipboard_fts JOIN clipboard_items ci ON ci.id = clipboard_fts.rowid"
		where = append(where, "clipboard_fts MATCH ?")
		args = append(args, match)
		order = "clipboard_fts.rank, " + order
	}

	if filters.Category != "" {
		where = append(where, "ci.category = ?")
		args = append(args, string(filters.Category))
	}
	if filters.ContentType != "" {
		where = append(where, "ci.content_type = ?")
		args = append(args, string(filters.ContentType))
	}
	if app := strings.TrimSpace(filters.SourceApp); app != "" {
		where = append(where, "ci.source_app = ? COLLATE NOCASE")
		args = append(args, app)
	}
	if filters.DateFrom > 0 {
		where = append(where, "ci.copied_at >= ?")
		args = append(args, filters.DateFrom)
	}
	if filters.DateTo > 0 {
		where = append(where, "ci.copied_at <= ?")
		args = append(args, filters.DateTo)
	}

	q := "SELECT " + prefixColumns("ci.") + " FROM " + from
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY " + order + " LIMIT ?"
	args = append(args, clampLimit(limit))

	rows, err := s.rdb.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apperr.Storage("search items", err)
	}
	items, err := scanItems(rows)
	if err != nil {
		return nil, apperr.Storage("scan search results", err)
	}
	return items, nil
}

// sanitizeFTS 把每个词包成 FTS5 字符串，内部引号加倍；不含字母数字的词被丢弃
// sanitizeFTS wraps each word as an FTS5 string with inner quotes doubled;
// words without any letter or digit are dropped since they index to nothing
func sanitizeFTS(query string) string {
	words := strings.Fields(query)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if !strings.ContainsFunc(w, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) {
			continue
		}
		out = append(out, `"`+strings.ReplaceAll(w, `"`, `""`)+`"`)
	}
	return strings.Join(out, " ")
}

func prefixColumns(prefix string) string {
	cols := strings.Split(itemColumns, ",")
	for i, c := range cols {
		cols[i] = prefix + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}
