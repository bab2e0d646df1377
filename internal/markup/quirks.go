package markup

import (
	"strings"

	"graft/internal/dom"
)

// doctypeID is a public or system identifier that may be absent.
type doctypeID struct {
	value   string
	present bool
}

// doctypeMode returns the compatibility mode a doctype selects. Identifiers
// compare case-insensitively.
func doctypeMode(name string, public, system doctypeID) dom.QuirksMode {
	if name != "html" {
		return dom.Quirks
	}

	pub := strings.ToLower(public.value)
	if public.present {
		switch pub {
		case "-//w3o//dtd w3 html strict 3.0//en//", "-/w3d/dtd html 4.0 transitional/en", "html":
			return dom.Quirks
		}
		for _, prefix := range quirkyPublicIDs {
			if strings.HasPrefix(pub, prefix) {
				return dom.Quirks
			}
		}
	}
	if system.present && strings.EqualFold(system.value, "http://www.ibm.com/data/dtd/v11/ibmxhtml1-transitional.dtd") {
		return dom.Quirks
	}

	html401 := strings.HasPrefix(pub, "-//w3c//dtd html 4.01 frameset//") ||
		strings.HasPrefix(pub, "-//w3c//dtd html 4.01 transitional//")
	if public.present && html401 {
		if !system.present {
			return dom.Quirks
		}
		return dom.LimitedQuirks
	}
	if strings.HasPrefix(pub, "-//w3c//dtd xhtml 1.0 frameset//") ||
		strings.HasPrefix(pub, "-//w3c//dtd xhtml 1.0 transitional//") {
		return dom.LimitedQuirks
	}

	return dom.NoQuirks
}

// quirkyPublicIDs are lower-case public identifier prefixes that select
// quirks mode.
var quirkyPublicIDs = []string{
	"+//silmaril//dtd html pro v0r11 19970101//",
	"-//advasoft ltd//dtd html 3.0 aswedit + extensions//",
	"-//as//dtd html 3.0 aswedit + extensions//",
	"-//ietf//dtd html 2.0 level 1//",
	"-//ietf//dtd html 2.0 level 2//",
	"-//ietf//dtd html 2.0 strict level 1//",
	"-//ietf//dtd html 2.0 strict level 2//",
	"-//ietf//dtd html 2.0 strict//",
	"-//ietf//dtd html 2.0//",
	"-//ietf//dtd html 2.1e//",
	"-//ietf//dtd html 3.0//",
	"-//ietf//dtd html 3.2 final//",
	"-//ietf//dtd html 3.2//",
	"-//ietf//dtd html 3//",
	"-//ietf//dtd html level 0//",
	"-//ietf//dtd html level 1//",
	"-//ietf//dtd html level 2//",
	"-//ietf//dtd html level 3//",
	"-//ietf//dtd html strict level 0//",
	"-//ietf//dtd html strict level 1//",
	"-//ietf//dtd html strict level 2//",
	"-//ietf//dtd html strict level 3//",
	"-//ietf//dtd html strict//",
	"-//ietf//dtd html//",
	"-//metrius//dtd metrius presentational//",
	"-//microsoft//dtd internet explorer 2.0 html strict//",
	"-//microsoft//dtd internet explorer 2.0 html//",
	"-//microsoft//dtd internet explorer 2.0 tables//",
	"-//microsoft//dtd internet explorer 3.0 html strict//",
	"-//microsoft//dtd internet explorer 3.0 html//",
	"-//microsoft//dtd internet explorer 3.0 tables//",
	"-//netscape comm. corp.//dtd html//",
	"-//netscape comm. corp.//dtd strict html//",
	"-//o'reilly and associates//dtd html 2.0//",
	"-//o'reilly and associates//dtd html extended 1.0//",
	"-//o'reilly and associates//dtd html extended relaxed 1.0//",
	"-//softquad software//dtd hotmetal pro 6.0::19990601::extensions to html 4.0//",
	"-//softquad//dtd hotmetal pro 4.0::19971010::extensions to html 4.0//",
	"-//spyglass//dtd html 2.0 extended//",
	"-//sq//dtd html 2.0 hotmetal + extensions//",
	"-//sun microsystems corp.//dtd hotjava html//",
	"-//sun microsystems corp.//dtd hotjava strict html//",
	"-//w3c//dtd html 3 1995-03-24//",
	"-//w3c//dtd html 3.2 draft//",
	"-//w3c//dtd html 3.2 final//",
	"-//w3c//dtd html 3.2//",
	"-//w3c//dtd html 3.2s draft//",
	"-//w3c//dtd html 4.0 frameset//",
	"-//w3c//dtd html 4.0 transitional//",
	"-//w3c//dtd html experimental 19960712//",
	"-//w3c//dtd html experimental 970421//",
	"-//w3c//dtd w3 html//",
	"-//w3o//dtd w3 html 3.0//",
	"-//webtechs//dtd mozilla html 2.0//",
	"-//webtechs//dtd mozilla html//",
}
