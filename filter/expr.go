package filter

import (
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/nesati/goplex/plex"
)

// exprFilter implements CompiledFilter using the expr language. helpers is
// the compiler's function environment, shared read-only across filters.
type exprFilter struct {
	expression string
	program    *vm.Program
	helpers    map[string]any
}

// ExprCompilerOption configures an expr compiler.
type ExprCompilerOption func(*exprCompiler)

// WithCache enables memoization of compiled expressions with the given
// capacity.
func WithCache(size int) ExprCompilerOption {
	return func(c *exprCompiler) {
		if size > 0 {
			c.cache = newLRUCache(size)
		}
	}
}

// WithCustomFunctions adds helper functions to the expression environment.
// They shadow the built-in helpers on name collision.
func WithCustomFunctions(funcs map[string]any) ExprCompilerOption {
	return func(c *exprCompiler) {
		maps.Copy(c.helperFuncs, funcs)
	}
}

// NewExprCompiler returns a Compiler for the expr language. Item attributes
// are resolved at evaluation time, so compilation validates syntax and
// helper usage but not attribute names.
func NewExprCompiler(opts ...ExprCompilerOption) Compiler {
	c := &exprCompiler{
		helperFuncs: createHelperFunctions(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type exprCompiler struct {
	helperFuncs map[string]any
	cache       *lruCache
}

// Compile parses an expression into an executable filter.
func (c *exprCompiler) Compile(expression string) (CompiledFilter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "empty expression",
			Position:   -1,
		}
	}

	if c.cache != nil {
		if cached, ok := c.cache.Get(expression); ok {
			return cached, nil
		}
	}

	// Item attributes only exist at evaluation time, hence
	// AllowUndefinedVariables.
	program, err := expr.Compile(expression,
		expr.Env(c.helperFuncs),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "failed to compile expression",
			Position:   -1,
			Err:        err,
		}
	}

	filter := &exprFilter{
		expression: expression,
		program:    program,
		helpers:    c.helperFuncs,
	}

	if c.cache != nil {
		c.cache.Put(expression, filter)
	}

	return filter, nil
}

// Clear drops all cached filters.
func (c *exprCompiler) Clear() {
	if c.cache != nil {
		c.cache.Clear()
	}
}

// Size returns the number of cached filters.
func (c *exprCompiler) Size() int {
	if c.cache != nil {
		return c.cache.Size()
	}
	return 0
}

// Evaluate runs the filter against an item. Expressions that fail at
// runtime count as non-matches rather than aborting a scan.
func (f *exprFilter) Evaluate(item plex.Item) bool {
	env := createItemEnvironment(item, f.helpers)

	result, err := expr.Run(f.program, env)
	if err != nil {
		return false
	}

	// AsBool at compile time guarantees the assertion.
	return result.(bool)
}

// Expression returns the source expression.
func (f *exprFilter) Expression() string {
	return f.expression
}

// IsThreadSafe reports that compiled programs may run concurrently.
func (f *exprFilter) IsThreadSafe() bool {
	return true
}

// createHelperFunctions builds the static environment used for compilation.
func createHelperFunctions() map[string]any {
	funcs := make(map[string]any, 16)
	addHelperFunctions(funcs)
	return funcs
}

// addHelperFunctions installs the item-independent helpers.
func addHelperFunctions(env map[string]any) {
	// Date helpers
	env["daysSince"] = func(t time.Time) int {
		return int(time.Since(t).Hours() / 24)
	}
	env["daysAgo"] = func(days int) time.Time {
		return time.Now().AddDate(0, 0, -days)
	}
	env["monthsAgo"] = func(months int) time.Time {
		return time.Now().AddDate(0, -months, 0)
	}
	env["yearsAgo"] = func(years int) time.Time {
		return time.Now().AddDate(-years, 0, 0)
	}
	env["parseDate"] = func(dateStr string) time.Time {
		t, _ := time.Parse("2006-01-02", dateStr)
		return t
	}
	// String helpers, all case-insensitive
	env["contains"] = func(str, substr string) bool {
		return strings.Contains(strings.ToLower(str), strings.ToLower(substr))
	}
	env["startsWith"] = func(str, prefix string) bool {
		return strings.HasPrefix(strings.ToLower(str), strings.ToLower(prefix))
	}
	env["endsWith"] = func(str, suffix string) bool {
		return strings.HasSuffix(strings.ToLower(str), strings.ToLower(suffix))
	}
	env["lower"] = strings.ToLower
	env["upper"] = strings.ToUpper
	// Current time
	env["now"] = time.Now
}

// createItemEnvironment builds the evaluation environment for one item on
// top of the compiler's helper functions. Well-known attributes are
// decoded into typed top-level keys; anything else stays reachable through
// attr and tags. Absent or malformed attributes decode to zero values so
// expressions stay total.
func createItemEnvironment(item plex.Item, helpers map[string]any) map[string]any {
	env := make(map[string]any, 64+len(helpers))

	maps.Copy(env, helpers)

	env["Item"] = item

	// Identity
	env["RatingKey"] = item.RatingKey()
	env["Title"] = attrString(item, "title")
	env["Type"] = attrString(item, "type")

	// Descriptive attributes
	env["Summary"] = attrString(item, "summary")
	env["Studio"] = attrString(item, "studio")
	env["ContentRating"] = attrString(item, "contentRating")
	env["ParentTitle"] = attrString(item, "parentTitle")
	env["GrandparentTitle"] = attrString(item, "grandparentTitle")
	env["Year"] = attrInt(item, "year")
	env["Index"] = attrInt(item, "index")
	env["ParentIndex"] = attrInt(item, "parentIndex")
	env["Duration"] = attrMillis(item, "duration")

	// Ratings
	env["Rating"] = attrFloat(item, "rating")
	env["AudienceRating"] = attrFloat(item, "audienceRating")
	env["UserRating"] = attrFloat(item, "userRating")

	// Watch state
	viewCount := attrInt(item, "viewCount")
	env["ViewCount"] = viewCount
	env["Watched"] = viewCount > 0
	env["LastViewedAt"] = attrEpoch(item, "lastViewedAt")

	// Bookkeeping timestamps
	env["AddedAt"] = attrEpoch(item, "addedAt")
	env["UpdatedAt"] = attrEpoch(item, "updatedAt")

	// Tag collections
	env["Genres"] = item.Tags("Genre")
	env["Collections"] = item.Tags("Collection")
	env["Labels"] = item.Tags("Label")

	// Item-bound helpers
	env["attr"] = func(name string) string {
		v, _ := item.Attr(name)
		return v
	}
	env["hasAttr"] = func(name string) bool {
		_, ok := item.Attr(name)
		return ok
	}
	env["tags"] = item.Tags
	env["hasGenre"] = createTagFunc(item, "Genre")
	env["hasCollection"] = createTagFunc(item, "Collection")
	env["hasLabel"] = createTagFunc(item, "Label")
	env["hasDirector"] = createTagFunc(item, "Director")
	env["hasWriter"] = createTagFunc(item, "Writer")
	env["hasActor"] = createTagFunc(item, "Role")
	env["hasCountry"] = createTagFunc(item, "Country")
	env["hasMood"] = createTagFunc(item, "Mood")

	return env
}

// createTagFunc closes over one flat-tag category for case-insensitive
// membership tests.
func createTagFunc(item plex.Item, category string) func(string) bool {
	return func(name string) bool {
		for _, tag := range item.Tags(category) {
			if strings.EqualFold(tag, name) {
				return true
			}
		}
		return false
	}
}

func attrString(item plex.Item, name string) string {
	v, _ := item.Attr(name)
	return v
}

func attrInt(item plex.Item, name string) int {
	v, ok := item.Attr(name)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func attrFloat(item plex.Item, name string) float64 {
	v, ok := item.Attr(name)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

// attrEpoch decodes a unix-seconds attribute. Absent attributes become the
// zero time, which date comparisons treat as the distant past.
func attrEpoch(item plex.Item, name string) time.Time {
	v, ok := item.Attr(name)
	if !ok {
		return time.Time{}
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(n, 0)
}

// attrMillis decodes a millisecond attribute into a Duration, so
// expressions can compare against duration("90m").
func attrMillis(item plex.Item, name string) time.Duration {
	v, ok := item.Attr(name)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return time.Duration(n) * time.Millisecond
}
