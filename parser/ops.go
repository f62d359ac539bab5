package parser

// opType is the position and associativity of an operator.
type opType int

const (
	xfx opType = iota
	xfy
	yfx
	fy
	fx
)

type operator struct {
	priority int
	typ      opType
}

// argMax returns the max priority of the left and right args.
func (op operator) argMax() (left, right int) {
	switch op.typ {
	case xfy:
		return op.priority - 1, op.priority
	case yfx:
		return op.priority, op.priority - 1
	case fy:
		return 0, op.priority
	}
	return op.priority - 1, op.priority - 1
}

var infixOps = map[string]operator{
	":-":   {1200, xfx},
	"-->":  {1200, xfx},
	";":    {1100, xfy},
	"|":    {1100, xfy},
	"->":   {1050, xfy},
	",":    {1000, xfy},
	"=":    {700, xfx},
	"\\=":  {700, xfx},
	"==":   {700, xfx},
	"\\==": {700, xfx},
	"@<":   {700, xfx},
	"@>":   {700, xfx},
	"@=<":  {700, xfx},
	"@>=":  {700, xfx},
	"=..":  {700, xfx},
	"is":   {700, xfx},
	"=:=":  {700, xfx},
	"=\\=": {700, xfx},
	"<":    {700, xfx},
	">":    {700, xfx},
	"=<":   {700, xfx},
	">=":   {700, xfx},
	"+":    {500, yfx},
	"-":    {500, yfx},
	"/\\":  {500, yfx},
	"\\/":  {500, yfx},
	"xor":  {500, yfx},
	"*":    {400, yfx},
	"/":    {400, yfx},
	"//":   {400, yfx},
	"mod":  {400, yfx},
	"rem":  {400, yfx},
	"<<":   {400, yfx},
	">>":   {400, yfx},
	"**":   {200, xfx},
	"^":    {200, xfy},
}

var prefixOps = map[string]operator{
	":-":      {1200, fx},
	"?-":      {1200, fx},
	"dynamic": {1150, fx},
	"\\+":     {900, fy},
	"-":       {200, fy},
	"+":       {200, fy},
	"\\":      {200, fy},
}
