package detect

import (
	"github.com/gnolang/minver/internal/syntax"
)

// codecSite gives the positional indexes of the encoding and error
// handler arguments of a call; -1 when the call has none.
type codecSite struct {
	encoding int
	errors   int
}

var codecCalls = map[string]codecSite{
	"bytearray":                    {1, 2},
	"bytes":                        {1, 2},
	"codecs.decode":                {1, 2},
	"codecs.encode":                {1, 2},
	"codecs.getdecoder":            {0, -1},
	"codecs.getencoder":            {0, -1},
	"codecs.getincrementaldecoder": {0, -1},
	"codecs.getincrementalencoder": {0, -1},
	"codecs.getreader":             {0, -1},
	"codecs.getwriter":             {0, -1},
	"codecs.iterdecode":            {1, 2},
	"codecs.iterencode":            {1, 2},
	"codecs.lookup":                {0, -1},
	"codecs.lookup_error":          {-1, 0},
	"codecs.open":                  {2, 3},
	"io.TextIOWrapper":             {1, 2},
	"io.open":                      {3, 4},
	"open":                         {3, 4},
	"str":                          {1, 2},
	"unicode":                      {1, 2},
}

// methodCodecSite covers str.encode and bytes.decode on any receiver.
var methodCodecSite = codecSite{0, 1}

// codecArgs extracts the literal codec names passed to call, if call is a
// known codec site.
func (v *visitor) codecArgs(call *syntax.Call) (encodings, handlers []*syntax.Str) {
	site, ok := v.codecSite(call)
	if !ok {
		return nil, nil
	}
	if s := strArg(call.Args, site.encoding); s != nil {
		encodings = append(encodings, s)
	}
	if s := strArg(call.Args, site.errors); s != nil {
		handlers = append(handlers, s)
	}
	for _, kw := range call.Keywords {
		s, ok := kw.Value.(*syntax.Str)
		if !ok || s == nil || len(s.Interpolations) > 0 {
			continue
		}
		switch kw.Arg {
		case "encoding":
			encodings = append(encodings, s)
		case "errors":
			handlers = append(handlers, s)
		}
	}
	return encodings, handlers
}

func (v *visitor) codecSite(call *syntax.Call) (codecSite, bool) {
	q, k := v.scope.qualify(call.Func)
	if attr, ok := call.Func.(*syntax.Attribute); ok && k != rootImport {
		if attr.Attr == "encode" || attr.Attr == "decode" {
			return methodCodecSite, true
		}
	}
	if k == rootUser || k == rootNone {
		return codecSite{}, false
	}
	site, ok := codecCalls[q]
	return site, ok
}

func strArg(args []syntax.Node, i int) *syntax.Str {
	if i < 0 || i >= len(args) {
		return nil
	}
	s, ok := args[i].(*syntax.Str)
	if !ok || s == nil || len(s.Interpolations) > 0 {
		return nil
	}
	return s
}
