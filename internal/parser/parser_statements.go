package parser

import "github.com/droy-go/SEEKEP/internal/ast"
import "github.com/droy-go/SEEKEP/internal/token"

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case token.LET:
		return p.parseVarDecl()
	case token.FN:
		return p.parseFuncDecl()
	case token.CLASS:
		return p.parseClassDecl()
	case token.IF:
		return p.parseIf()
	case token.WHILE:
		return p.parseWhile()
	case token.FOR:
		return p.parseForOrForeach()
	case token.RETURN:
		return p.parseReturn()
	case token.BREAK:
		return &ast.Break{}
	case token.CONTINUE:
		return &ast.Continue{}
	case token.LBRACE:
		return p.parseBlock()
	case token.IMPORT:
		return p.parseImport()
	case token.EXPORT:
		return p.parseExport()
	default:
		return p.parseExpressionStmt()
	}
}

func (p *Parser) parseVarDecl() ast.Statement {
	decl := &ast.VarDecl{IsMutable: true}
	if !p.expect(token.IDENT) {
		p.synchronize()
		return decl
	}
	decl.Name = p.curToken.Lexeme

	if p.peekIs(token.ASSIGN) {
		p.nextToken()
		p.nextToken()
		decl.Initializer = p.parseExpression(LOWEST)
	}
	if p.peekIs(token.SEMICOLON) {
		p.nextToken()
	}
	return decl
}

func (p *Parser) parseParamList() []ast.Param {
	var params []ast.Param
	if !p.expect(token.LPAREN) {
		return params
	}
	if p.peekIs(token.RPAREN) {
		p.nextToken()
		return params
	}
	p.nextToken()
	params = append(params, p.parseOneParam())
	for p.peekIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		params = append(params, p.parseOneParam())
	}
	p.expect(token.RPAREN)
	return params
}

func (p *Parser) parseOneParam() ast.Param {
	name := p.curToken.Lexeme
	param := ast.Param{Name: name}
	if p.peekIs(token.ASSIGN) {
		p.nextToken()
		p.nextToken()
		param.Default = p.parseExpression(LOWEST)
	}
	return param
}

func (p *Parser) parseFuncDecl() ast.Statement {
	decl := &ast.FuncDecl{}
	if !p.expect(token.IDENT) {
		p.synchronize()
		return decl
	}
	decl.Name = p.curToken.Lexeme
	decl.Params = p.parseParamList()
	if !p.expect(token.LBRACE) {
		p.synchronize()
		return decl
	}
	decl.Body = p.parseBlock()
	return decl
}

func (p *Parser) parseClassDecl() ast.Statement {
	decl := &ast.ClassDecl{}
	if !p.expect(token.IDENT) {
		p.synchronize()
		return decl
	}
	decl.Name = p.curToken.Lexeme

	if p.peekIs(token.INHERITS) {
		p.nextToken()
		if !p.expect(token.IDENT) {
			p.synchronize()
			return decl
		}
		decl.Parent = p.curToken.Lexeme
	} else if p.peekIs(token.COLON) {
		p.nextToken()
		if !p.expect(token.IDENT) {
			p.synchronize()
			return decl
		}
		decl.Parent = p.curToken.Lexeme
	}

	if !p.expect(token.LBRACE) {
		p.synchronize()
		return decl
	}
	p.nextToken()
	for !p.curIs(token.RBRACE) && !p.curIs(token.EOF) {
		if p.curIs(token.IDENT) {
			m := ast.Method{Name: p.curToken.Lexeme}
			m.Params = p.parseParamList()
			if p.expect(token.LBRACE) {
				m.Body = p.parseBlock()
			}
			decl.Methods = append(decl.Methods, m)
		} else {
			p.addError("expected method name, got %s", p.curToken.Type)
		}
		p.nextToken()
	}
	return decl
}

func (p *Parser) parseIf() ast.Statement {
	stmt := &ast.If{}
	if !p.expect(token.LPAREN) {
		p.synchronize()
		return stmt
	}
	p.nextToken()
	stmt.Cond = p.parseExpression(LOWEST)
	if !p.expect(token.RPAREN) {
		p.synchronize()
		return stmt
	}
	if !p.expect(token.LBRACE) {
		p.synchronize()
		return stmt
	}
	stmt.Then = p.parseBlock()

	if p.peekIs(token.ELSE) {
		p.nextToken()
		if p.peekIs(token.IF) {
			p.nextToken()
			nested := p.parseIf().(*ast.If)
			stmt.Else = &ast.Block{Statements: []ast.Statement{nested}}
		} else if p.expect(token.LBRACE) {
			stmt.Else = p.parseBlock()
		}
	}
	return stmt
}

func (p *Parser) parseWhile() ast.Statement {
	stmt := &ast.While{}
	if !p.expect(token.LPAREN) {
		p.synchronize()
		return stmt
	}
	p.nextToken()
	stmt.Cond = p.parseExpression(LOWEST)
	if !p.expect(token.RPAREN) {
		p.synchronize()
		return stmt
	}
	if !p.expect(token.LBRACE) {
		p.synchronize()
		return stmt
	}
	stmt.Body = p.parseBlock()
	return stmt
}

// parseForOrForeach disambiguates "for (init; cond; inc) body" from
// "for (item in iterable) body".
func (p *Parser) parseForOrForeach() ast.Statement {
	if !p.expect(token.LPAREN) {
		p.synchronize()
		return &ast.For{}
	}

	if p.peekIs(token.IDENT) {
		savedCur, savedPeek, savedPos := p.mark()
		p.nextToken()
		name := p.curToken.Lexeme
		if p.peekIs(token.IN) {
			p.nextToken()
			p.nextToken()
			fe := &ast.Foreach{Var: name}
			fe.Iterable = p.parseExpression(LOWEST)
			if !p.expect(token.RPAREN) || !p.expect(token.LBRACE) {
				p.synchronize()
				return fe
			}
			fe.Body = p.parseBlock()
			return fe
		}
		p.resetTo(savedCur, savedPeek, savedPos)
	}

	stmt := &ast.For{}
	p.nextToken()
	if p.curIs(token.LET) {
		p.nextToken()
		vd := &ast.VarDecl{IsMutable: true, Name: p.curToken.Lexeme}
		if p.peekIs(token.ASSIGN) {
			p.nextToken()
			p.nextToken()
			vd.Initializer = p.parseExpression(LOWEST)
		}
		stmt.InitVar = vd
	} else if !p.curIs(token.SEMICOLON) {
		stmt.InitExpr = p.parseExpression(LOWEST)
	}
	if !p.expect(token.SEMICOLON) {
		p.synchronize()
		return stmt
	}
	if !p.peekIs(token.SEMICOLON) {
		p.nextToken()
		stmt.Cond = p.parseExpression(LOWEST)
	}
	if !p.expect(token.SEMICOLON) {
		p.synchronize()
		return stmt
	}
	if !p.peekIs(token.RPAREN) {
		p.nextToken()
		stmt.Inc = p.parseExpression(LOWEST)
	}
	if !p.expect(token.RPAREN) || !p.expect(token.LBRACE) {
		p.synchronize()
		return stmt
	}
	stmt.Body = p.parseBlock()
	return stmt
}

func (p *Parser) parseReturn() ast.Statement {
	stmt := &ast.Return{}
	if !p.peekIs(token.SEMICOLON) && !p.peekIs(token.RBRACE) {
		p.nextToken()
		stmt.Value = p.parseExpression(LOWEST)
	}
	if p.peekIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseBlock() *ast.Block {
	block := &ast.Block{}
	p.nextToken()
	for !p.curIs(token.RBRACE) && !p.curIs(token.EOF) {
		p.skipSemicolons()
		if p.curIs(token.RBRACE) {
			break
		}
		stmt := p.parseStatement()
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.nextToken()
	}
	return block
}

func (p *Parser) parseExpressionStmt() ast.Statement {
	stmt := &ast.ExpressionStmt{}
	stmt.Expression = p.parseExpression(LOWEST)
	if p.peekIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseImport() ast.Statement {
	stmt := &ast.Import{}
	if !p.expect(token.STRING) {
		p.synchronize()
		return stmt
	}
	stmt.Module = p.curToken.Literal
	if p.peekIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}

func (p *Parser) parseExport() ast.Statement {
	stmt := &ast.Export{}
	if p.peekIs(token.IDENT) {
		p.nextToken()
		stmt.Names = append(stmt.Names, p.curToken.Lexeme)
		for p.peekIs(token.COMMA) {
			p.nextToken()
			p.nextToken()
			stmt.Names = append(stmt.Names, p.curToken.Lexeme)
		}
	}
	if p.peekIs(token.SEMICOLON) {
		p.nextToken()
	}
	return stmt
}
