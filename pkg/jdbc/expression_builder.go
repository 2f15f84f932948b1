package jdbc

import (
	"strconv"
	"strings"

	"github.com/datazip-inc/olake-jdbc/types"
	"github.com/jmoiron/sqlx"
)

// ExpressionBuilder accumulates SQL text and its positional arguments.
// Placeholders are written in the dialect's style as parameters are appended,
// appended text is never rewritten, so '?' inside literals or operators of a
// custom query survives.
type ExpressionBuilder struct {
	dialect Dialect
	sql     strings.Builder
	args    []any
}

func NewExpressionBuilder(dialect Dialect) *ExpressionBuilder {
	return &ExpressionBuilder{dialect: dialect}
}

func (b *ExpressionBuilder) Append(text string) *ExpressionBuilder {
	b.sql.WriteString(text)
	return b
}

func (b *ExpressionBuilder) AppendTable(table types.TableID) *ExpressionBuilder {
	b.sql.WriteString(b.dialect.QuoteTable(table))
	return b
}

// AppendColumn writes the unqualified quoted column name so the clause also
// works on top of custom queries
func (b *ExpressionBuilder) AppendColumn(column types.ColumnID) *ExpressionBuilder {
	b.sql.WriteString(b.dialect.QuoteIdentifier(column.Name))
	return b
}

// AppendParam writes a placeholder bound to value
func (b *ExpressionBuilder) AppendParam(value any) *ExpressionBuilder {
	b.args = append(b.args, value)
	b.sql.WriteString(placeholder(b.dialect.BindType(), len(b.args)))
	return b
}

func (b *ExpressionBuilder) Args() []any {
	return b.args
}

// Query returns the SQL and its arguments
func (b *ExpressionBuilder) Query() (string, []any) {
	return b.sql.String(), b.args
}

func (b *ExpressionBuilder) String() string {
	query, _ := b.Query()
	return query
}

// placeholder renders the n-th (1 based) parameter in the sqlx bind type
func placeholder(bindType, n int) string {
	switch bindType {
	case sqlx.DOLLAR:
		return "$" + strconv.Itoa(n)
	case sqlx.AT:
		return "@p" + strconv.Itoa(n)
	case sqlx.NAMED:
		return ":arg" + strconv.Itoa(n)
	default:
		return "?"
	}
}
