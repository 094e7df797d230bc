// Package parser implements the single-pass recursive-descent/Pratt parser
// that turns a token stream into the internal/ast node set the compiler
// consumes. The parser is an external collaborator of the
// core, but it is the only thing that can produce a
// well-formed AST, so it lives in this repository.
package parser

import (
	"fmt"

	"github.com/droy-go/SEEKEP/internal/ast"
	"github.com/droy-go/SEEKEP/internal/lexer"
	"github.com/droy-go/SEEKEP/internal/token"
)

// Operator precedence levels, lowest to highest.
const (
	LOWEST int = iota
	ASSIGNMENT
	TERNARY
	LOGIC_OR
	LOGIC_AND
	BIT_OR
	BIT_XOR
	BIT_AND
	EQUALITY
	RELATIONAL
	SHIFT
	ADDITIVE
	MULTIPLICATIVE
	POWER
	UNARY
	POSTFIX
	CALL
)

var precedences = map[token.Type]int{
	token.ASSIGN:   ASSIGNMENT,
	token.QUESTION: TERNARY,
	token.OR:       LOGIC_OR,
	token.AND:      LOGIC_AND,
	token.PIPE:     BIT_OR,
	token.CARET:    BIT_XOR,
	token.AMP:      BIT_AND,
	token.EQ:       EQUALITY,
	token.NE:       EQUALITY,
	token.LT:       RELATIONAL,
	token.GT:       RELATIONAL,
	token.LE:       RELATIONAL,
	token.GE:       RELATIONAL,
	token.SHL:      SHIFT,
	token.SHR:      SHIFT,
	token.PLUS:     ADDITIVE,
	token.MINUS:    ADDITIVE,
	token.STAR:     MULTIPLICATIVE,
	token.SLASH:    MULTIPLICATIVE,
	token.PERCENT:  MULTIPLICATIVE,
	token.STARSTAR: POWER,
	token.LPAREN:   CALL,
	token.LBRACKET: CALL,
	token.DOT:      CALL,
	token.INCR:     POSTFIX,
	token.DECR:     POSTFIX,
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// ParseError records one recovered syntax error.
type ParseError struct {
	Message string
	Line    int
	Column  int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// Parser is a single-pass recursive-descent parser with Pratt-style
// expression parsing. The token stream is buffered up front so the two
// backtracking points (lambda parameter lists, foreach headers) can save
// and restore a plain position.
type Parser struct {
	tokens  []token.Token
	nextPos int

	curToken  token.Token
	peekToken token.Token

	errors []*ParseError

	prefixParseFns map[token.Type]prefixParseFn
	infixParseFns  map[token.Type]infixParseFn
}

// New creates a Parser reading from l.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{}
	for {
		tok := l.NextToken()
		p.tokens = append(p.tokens, tok)
		if tok.Type == token.EOF {
			break
		}
	}

	p.prefixParseFns = map[token.Type]prefixParseFn{
		token.IDENT:    p.parseIdentifier,
		token.INT:      p.parseNumber,
		token.FLOAT:    p.parseNumber,
		token.STRING:   p.parseString,
		token.TRUE:     p.parseBoolean,
		token.FALSE:    p.parseBoolean,
		token.NULLTOK:  p.parseNull,
		token.THIS:     p.parseIdentifier,
		token.BANG:     p.parseUnary,
		token.MINUS:    p.parseUnary,
		token.TILDE:    p.parseUnary,
		token.INCR:     p.parsePrefixIncDec,
		token.DECR:     p.parsePrefixIncDec,
		token.LPAREN:   p.parseGroupedOrLambda,
		token.LBRACKET: p.parseListLiteral,
		token.LBRACE:   p.parseDictLiteral,
		token.FN:       p.parseLambdaExpr,
		token.NEW:      p.parseNewExpr,
	}

	p.infixParseFns = map[token.Type]infixParseFn{
		token.PLUS:     p.parseBinary,
		token.MINUS:    p.parseBinary,
		token.STAR:     p.parseBinary,
		token.SLASH:    p.parseBinary,
		token.PERCENT:  p.parseBinary,
		token.STARSTAR: p.parseBinaryRightAssoc,
		token.EQ:       p.parseBinary,
		token.NE:       p.parseBinary,
		token.LT:       p.parseBinary,
		token.GT:       p.parseBinary,
		token.LE:       p.parseBinary,
		token.GE:       p.parseBinary,
		token.AND:      p.parseBinary,
		token.OR:       p.parseBinary,
		token.AMP:      p.parseBinary,
		token.PIPE:     p.parseBinary,
		token.CARET:    p.parseBinary,
		token.SHL:      p.parseBinary,
		token.SHR:      p.parseBinary,
		token.ASSIGN:   p.parseAssignment,
		token.QUESTION: p.parseTernary,
		token.LPAREN:   p.parseCall,
		token.LBRACKET: p.parseIndex,
		token.DOT:      p.parseMember,
		token.INCR:     p.parsePostfixIncDec,
		token.DECR:     p.parsePostfixIncDec,
	}

	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) Errors() []*ParseError { return p.errors }

func (p *Parser) addError(format string, args ...interface{}) {
	p.errors = append(p.errors, &ParseError{
		Message: fmt.Sprintf(format, args...),
		Line:    p.curToken.Line,
		Column:  p.curToken.Column,
	})
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	if p.nextPos < len(p.tokens) {
		p.peekToken = p.tokens[p.nextPos]
		p.nextPos++
	}
}

// mark/resetTo implement backtracking over the buffered token stream.
func (p *Parser) mark() (cur, peek token.Token, pos int) {
	return p.curToken, p.peekToken, p.nextPos
}

func (p *Parser) resetTo(cur, peek token.Token, pos int) {
	p.curToken, p.peekToken, p.nextPos = cur, peek, pos
}

func (p *Parser) curIs(t token.Type) bool  { return p.curToken.Type == t }
func (p *Parser) peekIs(t token.Type) bool { return p.peekToken.Type == t }

func (p *Parser) expect(t token.Type) bool {
	if p.peekIs(t) {
		p.nextToken()
		return true
	}
	p.addError("expected next token to be %s, got %s instead", t, p.peekToken.Type)
	return false
}

func (p *Parser) peekPrecedence() int {
	if pr, ok := precedences[p.peekToken.Type]; ok {
		return pr
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if pr, ok := precedences[p.curToken.Type]; ok {
		return pr
	}
	return LOWEST
}

// skipSemicolons consumes any number of redundant statement terminators.
func (p *Parser) skipSemicolons() {
	for p.curIs(token.SEMICOLON) {
		p.nextToken()
	}
}

// synchronize discards tokens until the next statement boundary, following
// the same recovery protocol the compiler relies on to keep reporting
// later errors after the first one. It stops with the current token on the
// broken statement's ';', or on the token just before a statement keyword
// or '}', so the caller's usual nextToken lands on the next statement.
func (p *Parser) synchronize() {
	for !p.curIs(token.EOF) {
		if p.curIs(token.SEMICOLON) {
			return
		}
		switch p.peekToken.Type {
		case token.LET, token.FN, token.CLASS, token.IF, token.WHILE, token.FOR,
			token.RETURN, token.BREAK, token.CONTINUE, token.RBRACE:
			return
		}
		p.nextToken()
	}
}

// ParseProgram parses the whole token stream, collecting every syntax error
// it recovers from rather than stopping at the first one.
func (p *Parser) ParseProgram() *ast.Program {
	prog := &ast.Program{}
	for !p.curIs(token.EOF) {
		p.skipSemicolons()
		if p.curIs(token.EOF) {
			break
		}
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
		}
		p.nextToken()
	}
	return prog
}

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.addError("no prefix parse function for %s found", p.curToken.Type)
		return nil
	}
	left := prefix()

	for !p.peekIs(token.SEMICOLON) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return left
		}
		p.nextToken()
		left = infix(left)
	}
	return left
}

func (p *Parser) parseIdentifier() ast.Expression {
	return &ast.Identifier{Name: p.curToken.Lexeme}
}

func (p *Parser) parseNumber() ast.Expression {
	return &ast.Number{Text: p.curToken.Lexeme}
}

func (p *Parser) parseString() ast.Expression {
	return &ast.String{Text: p.curToken.Literal}
}

func (p *Parser) parseBoolean() ast.Expression {
	return &ast.Boolean{Value: p.curIs(token.TRUE)}
}

func (p *Parser) parseNull() ast.Expression {
	return &ast.Null{}
}

func (p *Parser) parseUnary() ast.Expression {
	op := p.curToken.Lexeme
	p.nextToken()
	operand := p.parseExpression(UNARY)
	return &ast.UnaryOp{Op: op, Operand: operand}
}

func (p *Parser) parsePrefixIncDec() ast.Expression {
	op := p.curToken.Lexeme
	p.nextToken()
	operand := p.parseExpression(UNARY)
	return &ast.IncDec{Op: op, Operand: operand, IsPostfix: false}
}

func (p *Parser) parsePostfixIncDec(left ast.Expression) ast.Expression {
	return &ast.IncDec{Op: p.curToken.Lexeme, Operand: left, IsPostfix: true}
}

func (p *Parser) parseBinary(left ast.Expression) ast.Expression {
	op := p.curToken.Lexeme
	precedence := p.curPrecedence()
	p.nextToken()
	right := p.parseExpression(precedence)
	return &ast.BinaryOp{Op: op, Lhs: left, Rhs: right}
}

func (p *Parser) parseBinaryRightAssoc(left ast.Expression) ast.Expression {
	op := p.curToken.Lexeme
	precedence := p.curPrecedence()
	p.nextToken()
	right := p.parseExpression(precedence - 1)
	return &ast.BinaryOp{Op: op, Lhs: left, Rhs: right}
}

func (p *Parser) parseAssignment(left ast.Expression) ast.Expression {
	p.nextToken()
	value := p.parseExpression(ASSIGNMENT - 1)
	return &ast.Assignment{Target: left, Value: value}
}

func (p *Parser) parseTernary(cond ast.Expression) ast.Expression {
	p.nextToken()
	then := p.parseExpression(TERNARY)
	if !p.expect(token.COLON) {
		return nil
	}
	p.nextToken()
	els := p.parseExpression(TERNARY)
	return &ast.Ternary{Cond: cond, Then: then, Else: els}
}

func (p *Parser) parseCall(callee ast.Expression) ast.Expression {
	call := &ast.Call{Callee: callee}
	call.Args = p.parseExpressionList(token.RPAREN)
	return call
}

func (p *Parser) parseExpressionList(end token.Type) []ast.Expression {
	var list []ast.Expression
	if p.peekIs(end) {
		p.nextToken()
		return list
	}
	p.nextToken()
	list = append(list, p.parseExpression(LOWEST))
	for p.peekIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		list = append(list, p.parseExpression(LOWEST))
	}
	if !p.expect(end) {
		return nil
	}
	return list
}

func (p *Parser) parseIndex(left ast.Expression) ast.Expression {
	p.nextToken()
	idx := p.parseExpression(LOWEST)
	if !p.expect(token.RBRACKET) {
		return nil
	}
	return &ast.IndexAccess{Object: left, Index: idx}
}

func (p *Parser) parseMember(left ast.Expression) ast.Expression {
	if !p.expect(token.IDENT) {
		return nil
	}
	return &ast.MemberAccess{Object: left, Name: p.curToken.Lexeme}
}

func (p *Parser) parseListLiteral() ast.Expression {
	return &ast.ListLiteral{Elements: p.parseExpressionList(token.RBRACKET)}
}

func (p *Parser) parseDictLiteral() ast.Expression {
	lit := &ast.DictLiteral{}
	for !p.peekIs(token.RBRACE) {
		p.nextToken()
		key := p.parseExpression(LOWEST)
		if !p.expect(token.COLON) {
			return nil
		}
		p.nextToken()
		val := p.parseExpression(LOWEST)
		lit.Pairs = append(lit.Pairs, ast.DictPair{Key: key, Value: val})
		if p.peekIs(token.COMMA) {
			p.nextToken()
		} else {
			break
		}
	}
	if !p.expect(token.RBRACE) {
		return nil
	}
	return lit
}

// parseGroupedOrLambda disambiguates "(" expr ")" from a parenthesized
// parameter list followed by "{" (a lambda).
func (p *Parser) parseGroupedOrLambda() ast.Expression {
	savedCur, savedPeek, savedPos := p.mark()

	if params, ok := p.tryParseParamList(); ok && p.peekIs(token.LBRACE) {
		p.nextToken()
		body := p.parseBlock()
		return &ast.Lambda{Params: params, Body: body}
	}

	p.resetTo(savedCur, savedPeek, savedPos)
	p.nextToken()
	exp := p.parseExpression(LOWEST)
	if !p.expect(token.RPAREN) {
		return nil
	}
	return exp
}

// tryParseParamList attempts to parse "(name, name, ...)" from the current
// "(" token. It never records errors; callers fall back on failure.
func (p *Parser) tryParseParamList() ([]string, bool) {
	if !p.curIs(token.LPAREN) {
		return nil, false
	}
	var names []string
	if p.peekIs(token.RPAREN) {
		p.nextToken()
		return names, true
	}
	if !p.peekIs(token.IDENT) {
		return nil, false
	}
	p.nextToken()
	names = append(names, p.curToken.Lexeme)
	for p.peekIs(token.COMMA) {
		p.nextToken()
		if !p.peekIs(token.IDENT) {
			return nil, false
		}
		p.nextToken()
		names = append(names, p.curToken.Lexeme)
	}
	if !p.peekIs(token.RPAREN) {
		return nil, false
	}
	p.nextToken()
	return names, true
}

func (p *Parser) parseLambdaExpr() ast.Expression {
	if !p.expect(token.LPAREN) {
		return nil
	}
	params, _ := p.tryParseParamList()
	if !p.expect(token.LBRACE) {
		return nil
	}
	body := p.parseBlock()
	return &ast.Lambda{Params: params, Body: body}
}

func (p *Parser) parseNewExpr() ast.Expression {
	p.nextToken()
	return p.parseExpression(UNARY)
}
