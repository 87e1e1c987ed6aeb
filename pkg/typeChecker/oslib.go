package typeChecker

import "strings"

// osLibrary holds the subroutines of the standard operating system classes,
// for programs that are linked against it rather than shipping their own.
var osLibrary = buildLibrary(map[string][]string{
	"Math": {
		"function void init", "function int abs int", "function int multiply int int",
		"function int divide int int", "function int min int int", "function int max int int",
		"function int sqrt int",
	},
	"String": {
		"constructor String new int", "method void dispose", "method int length",
		"method char charAt int", "method void setCharAt int char", "method String appendChar char",
		"method void eraseLastChar", "method int intValue", "method void setInt int",
		"function char backSpace", "function char doubleQuote", "function char newLine",
	},
	"Array": {"function Array new int", "method void dispose"},
	"Output": {
		"function void init", "function void moveCursor int int", "function void printChar char",
		"function void printString String", "function void printInt int", "function void println",
		"function void backSpace",
	},
	"Screen": {
		"function void init", "function void clearScreen", "function void setColor boolean",
		"function void drawPixel int int", "function void drawLine int int int int",
		"function void drawRectangle int int int int", "function void drawCircle int int int",
	},
	"Keyboard": {
		"function void init", "function char keyPressed", "function char readChar",
		"function String readLine String", "function int readInt String",
	},
	"Memory": {
		"function void init", "function int peek int", "function void poke int int",
		"function Array alloc int", "function void deAlloc Array",
	},
	"Sys": {"function void init", "function void halt", "function void error int", "function void wait int"},
})

// buildLibrary parses "kind return name paramTypes..." entries.
func buildLibrary(decls map[string][]string) map[string]map[string]*Signature {
	lib := make(map[string]map[string]*Signature, len(decls))
	for class, entries := range decls {
		subs := make(map[string]*Signature, len(entries))
		for _, e := range entries {
			f := strings.Fields(e)
			subs[f[2]] = &Signature{Class: class, Kind: f[0], Return: f[1], Name: f[2], Params: f[3:]}
		}
		lib[class] = subs
	}
	return lib
}
