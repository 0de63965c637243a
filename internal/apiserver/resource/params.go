package resource

import (
	"net/http"
	"strconv"
	"strings"

	"catalog-admin/internal/shared/query"
	"catalog-admin/internal/shared/registry"
)

// reservedParams 不作为等值过滤处理的查询参数
var reservedParams = map[string]bool{
	"from":      true,
	"limit":     true,
	"sort":      true,
	"sample":    true,
	"randomize": true,
	"token":     true,
}

// parseParams 把查询参数解析为引擎的查询条件
//
// from/limit 非法（非整数或负数）按 InvalidFilterError 处理；
// sample=N 取 N 条随机抽样（正整数），randomize=true 是兼容别名，
// 抽样条数取 limit；sort 支持 "-field" 形式表示降序（默认即降序，
// 裸字段名表示升序）。其余参数一律当作等值过滤传给编译器，
// 由编译器拒绝未声明的字段。
func parseParams(r *http.Request, res *registry.Resource) (query.Params, error) {
	q := r.URL.Query()
	var p query.Params

	var err error
	if p.From, err = parseNonNegative(q.Get("from"), "from"); err != nil {
		return query.Params{}, err
	}
	if p.Limit, err = parseNonNegative(q.Get("limit"), "limit"); err != nil {
		return query.Params{}, err
	}

	if raw := q.Get("sample"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return query.Params{}, &query.InvalidFilterError{Field: "sample", Reason: "must be a positive integer"}
		}
		p.Sample = n
	} else if isTruthy(q.Get("randomize")) {
		size := int(p.Limit)
		if size <= 0 {
			size = 1
		}
		p.Sample = size
	}

	if sort := q.Get("sort"); sort != "" {
		if strings.HasPrefix(sort, "-") {
			p.SortField = sort[1:]
		} else {
			p.SortField = sort
			p.SortAsc = true
		}
	}

	for param := range q {
		if reservedParams[param] {
			continue
		}
		if p.Filters == nil {
			p.Filters = make(map[string]string)
		}
		p.Filters[param] = q.Get(param)
	}

	return p, nil
}

func parseNonNegative(raw, name string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &query.InvalidFilterError{Field: name, Reason: "must be an integer"}
	}
	if n < 0 {
		return 0, &query.InvalidFilterError{Field: name, Reason: "must be non-negative"}
	}
	return n, nil
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
