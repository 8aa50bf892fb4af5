package symbols

import (
	"sort"
	"strings"
)

// Universe represents a predefined stock universe
type Universe string

const (
	UniverseBIST100 Universe = "bist100"
	UniverseBISTAll Universe = "bist"
	UniverseTest    Universe = "test" // Small set for testing
)

// TickerSuffix marks Borsa Istanbul listings on Yahoo
const TickerSuffix = ".IS"

// GetUniverse returns the list of symbols for a given universe
func GetUniverse(u Universe) []string {
	switch u {
	case UniverseBIST100:
		return BIST100Symbols
	case UniverseBISTAll:
		return BISTSymbols
	case UniverseTest:
		return TestSymbols
	default:
		return nil
	}
}

// AvailableUniverses lists the universe names GetUniverse knows
func AvailableUniverses() []Universe {
	return []Universe{UniverseBIST100, UniverseBISTAll, UniverseTest}
}

// Ticker returns the Yahoo ticker for a BIST symbol ("THYAO" -> "THYAO.IS")
func Ticker(symbol string) string {
	symbol = Normalize(symbol)
	if strings.HasSuffix(symbol, TickerSuffix) {
		return symbol
	}
	return symbol + TickerSuffix
}

// Normalize upper-cases and trims a user-supplied symbol
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Contains reports whether symbol is in the sorted list
func Contains(list []string, symbol string) bool {
	symbol = Normalize(symbol)
	i := sort.SearchStrings(list, symbol)
	return i < len(list) && list[i] == symbol
}

// TestSymbols is a small set for quick testing
var TestSymbols = []string{
	"AKBNK", "ASELS", "BIMAS", "EREGL", "GARAN",
	"KCHOL", "SASA", "SISE", "THYAO", "TUPRS",
}

// BIST100Symbols is the BIST 100 core list, sorted
var BIST100Symbols = []string{
	"AEFES", "AFYON", "AGESA", "AGHOL", "AKBNK", "AKCNS", "AKFGY", "AKFYE", "AKSA", "AKSEN",
	"ALARK", "ALBRK", "ALFAS", "ALGYO", "ALKIM", "ANSGR", "ARCLK", "ARDYZ", "ASELS", "ASUZU",
	"AYDEM", "AYGAZ", "BERA", "BIENY", "BIMAS", "BRSAN", "BRYAT", "BTCIM", "BUCIM", "CANTE",
	"CCOLA", "CEMTS", "CIMSA", "CLEBI", "CONSE", "DEVA", "DOAS", "DOHOL", "ECILC", "EGEEN",
	"EKGYO", "ENJSA", "ENKAI", "ERBOS", "EREGL", "EUPWR", "EUREN", "FROTO", "GARAN", "GENIL",
	"GESAN", "GLYHO", "GOZDE", "GUBRF", "GWIND", "HALKB", "HEKTS", "IPEKE", "ISCTR", "ISGYO",
	"ISMEN", "KARSN", "KCAER", "KCHOL", "KLSER", "KONTR", "KONYA", "KOZAA", "KOZAL", "KRDMD",
	"KRVGD", "KTLEV", "LMKDC", "LOGO", "MAVI", "MERCN", "MGROS", "MIATK", "MKGYO", "ODAS",
	"OTKAR", "OYAKC", "PAPIL", "PETKM", "PGSUS", "QUAGR", "SAHOL", "SASA", "SELEC", "SISE",
	"SKBNK", "SMRTG", "SOKM", "TAVHL", "TCELL", "THYAO", "TKFEN", "TKNSA", "TOASO", "TRGYO",
	"TSKB", "TTKOM", "TTRAK", "TUPRS", "TURSG", "ULKER", "VAKBN", "VERUS", "VESTL", "YKBNK",
}

// BISTSymbols is BIST 100 plus the other commonly charted listings, sorted and deduplicated
var BISTSymbols = []string{
	"ADEL", "ADESE", "AEFES", "AFYON", "AGESA", "AGHOL", "AKBNK", "AKCNS", "AKENR", "AKFGY",
	"AKFYE", "AKSA", "AKSEN", "ALARK", "ALBRK", "ALCAR", "ALFAS", "ALGYO", "ALKIM", "ALMAD",
	"ANELE", "ANHYT", "ANSEN", "ANSGR", "ARASE", "ARCLK", "ARDYZ", "ARENA", "ARMDA", "ASELS",
	"ASTOR", "ASUZU", "ATAGY", "ATLAS", "AVHOL", "AVOD", "AVTUR", "AYCES", "AYDEM", "AYGAZ",
	"BAGFS", "BAKAB", "BANVT", "BARMA", "BASGZ", "BAYRK", "BERA", "BEYAZ", "BFREN", "BIENY",
	"BIGCH", "BIMAS", "BIZIM", "BJKAS", "BLCYT", "BMSCH", "BMSTL", "BNTAS", "BOBET", "BOSSA",
	"BRISA", "BRKSN", "BRLSM", "BRMEN", "BRSAN", "BRYAT", "BTCIM", "BUCIM", "BURCE", "BURVA",
	"CANTE", "CASA", "CCOLA", "CEMAS", "CEMTS", "CIMSA", "CLEBI", "CMENT", "CONSE", "CUSAN",
	"CVKMD", "DAGHL", "DAGI", "DAPGM", "DARDL", "DENGE", "DERHL", "DERIM", "DESA", "DESPC",
	"DEVA", "DGATE", "DGGYO", "DGNMO", "DIRIT", "DITAS", "DJIST", "DMRGD", "DNISI", "DOAS",
	"DOBUR", "DOCO", "DOGUB", "DOHOL", "DOKTA", "DURDO", "DYOBY", "DZGYO", "EBEBK", "ECILC",
	"EDIP", "EGEEN", "EGEPO", "EGGUB", "EGPRO", "EGSER", "EKGYO", "EKIZ", "EKSUN", "ELITE",
	"EMKEL", "EMNIS", "ENJSA", "ENKAI", "ENSRI", "EPLAS", "ERBOS", "EREGL", "ERSU", "ESCAR",
	"ESCOM", "ESEN", "ETILR", "ETYAT", "EUHOL", "EUPWR", "EUREN", "EUYO", "EYGYO", "FADE",
	"FENER", "FMIZP", "FONET", "FORMT", "FORTE", "FRIGO", "FROTO", "GARAN", "GEDIK", "GEDZA",
	"GENIL", "GENTS", "GESAN", "GLBMD", "GLCVY", "GLRYH", "GLYHO", "GMTAS", "GOKNR", "GOLTS",
	"GOODY", "GOZDE", "GRNYO", "GRSEL", "GRTRK", "GSDDE", "GSDHO", "GSRAY", "GUBRF", "GWIND",
	"GZNMI", "HALKB", "HATEK", "HATSN", "HDFGS", "HEDEF", "HEKTS", "HKTM", "HLGYO", "HTTBT",
	"HUBVC", "HUNER", "HURGZ", "ICBCT", "ICUGS", "IDEAS", "IDGYO", "IEYHO", "IHEVA", "IHGZT",
	"IHLAS", "IHLGM", "IHYAY", "IMASM", "INDES", "INGRM", "INTEM", "INVEO", "INVES", "IPEKE",
	"ISATR", "ISBIR", "ISBTR", "ISCTR", "ISFIN", "ISGSY", "ISGYO", "ISKPL", "ISKUR", "ISMEN",
	"ISSEN", "IZFAS", "IZINV", "IZMDC", "JANTS", "KAPLM", "KAREL", "KARSN", "KARTN", "KARYE",
	"KATMR", "KAYSE", "KBORU", "KCAER", "KCHOL", "KERVN", "KFEIN", "KGYO", "KIMMR", "KLGYO",
	"KLKIM", "KLMSN", "KLNMA", "KLRHO", "KLSER", "KMPUR", "KNFRT", "KONKA", "KONTR", "KONYA",
	"KOPOL", "KORDS", "KOZAA", "KOZAL", "KRDMD", "KRPLS", "KRSTL", "KRTEK", "KRVGD", "KRVTN",
	"KTLEV", "KUTPO", "KUYAS", "KZBGY", "KZGYO", "LIDER", "LIDFA", "LILAK", "LINK", "LKMNH",
	"LMKDC", "LOGO", "LUKSK", "MAALT", "MACKO", "MAGEN", "MAKIM", "MAKTK", "MANAS", "MARBL",
	"MARKA", "MARTI", "MAVI", "MEDTR", "MEGAP", "MEKAG", "MEPET", "MERCN", "MERIT", "MERKO",
	"METRO", "METUR", "MGROS", "MHRGY", "MIATK", "MIPAZ", "MKGYO", "MMCAS", "MNDRS", "MNDTR",
	"MOBTL", "MOGAN", "MPARK", "MRGYO", "MRSHL", "MSGYO", "MTRKS", "MTRYO", "MZHLD", "NATEN",
	"NETAS", "NIBAS", "NTGAZ", "NUGYO", "NUHCM", "OBAMS", "OBASE", "ODAS", "ONCSM", "ORCAY",
	"ORGE", "ORMA", "OSMEN", "OSTIM", "OTKAR", "OYAKC", "OYLUM", "OZGYO", "OZKGY", "OZRDN",
	"OZSUB", "PAGYO", "PAMEL", "PAPIL", "PETKM", "PGSUS", "PNLSN", "PNSUT", "POLHO", "POLTK",
	"PRDGS", "PRKAB", "PRKME", "PRZMA", "PSDTC", "QNBFB", "QNBFL", "QUAGR", "RALYH", "RAYSG",
	"REEDR", "RGYAS", "RODRG", "ROYAL", "RTALB", "RUBNS", "RYSAS", "SAFKR", "SAHOL", "SAMAT",
	"SANEL", "SANFM", "SANKO", "SARKY", "SASA", "SAYAS", "SDTTR", "SEGYO", "SEKFK", "SEKUR",
	"SELEC", "SELGD", "SELVA", "SEYKM", "SILVR", "SISE", "SKBNK", "SMRTG", "SNGYO", "SNICA",
	"SNKRN", "SNPAM", "SODSN", "SOKM", "SONME", "SURGY", "SUWEN", "TARKM", "TATGD", "TAVHL",
	"TBORG", "TCELL", "TDGYO", "TEKTU", "TERA", "TETMT", "TEZOL", "TGSAS", "THYAO", "TKFEN",
	"TKNSA", "TLMAN", "TMPOL", "TMSN", "TNZTP", "TOASO", "TRCAS", "TRGYO", "TRILC", "TSGYO",
	"TSKB", "TSPOR", "TTKOM", "TTRAK", "TUCLK", "TUKAS", "TUPRS", "TUREX", "TURSG", "ULKER",
	"ULUUN", "UMPAS", "UNLU", "USAS", "USDTR", "UZERB", "VAKBN", "VAKFN", "VAKKO", "VANGD",
	"VBTYZ", "VERTU", "VERUS", "VESTL", "VKFYO", "VKGYO", "VKING", "YAPRK", "YATAS", "YAYLA",
	"YGGYO", "YGYO", "YKBNK", "YKSLN", "YUNSA", "YYAPI", "ZEDUR", "ZOREN", "ZRGYO",
}
