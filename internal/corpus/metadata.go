package corpus

// chapterMeta holds canonical metadata for a single chapter. Sources that
// carry their own chapter names override this table; sources that only carry
// verse text (flat records, number-keyed maps) get their names and canonical
// verse counts from here.
type chapterMeta struct {
	Name       string
	Translated string
	VerseCount int
}

// chapterTable lists all 114 chapters in canonical order, indexed by
// chapter number. Verse counts follow the Hafs numbering.
var chapterTable = map[int]chapterMeta{
	1:   {"Al-Fatihah", "The Opening", 7},
	2:   {"Al-Baqarah", "The Cow", 286},
	3:   {"Ali 'Imran", "The Family of Imran", 200},
	4:   {"An-Nisa", "The Women", 176},
	5:   {"Al-Ma'idah", "The Table Spread", 120},
	6:   {"Al-An'am", "The Cattle", 165},
	7:   {"Al-A'raf", "The Heights", 206},
	8:   {"Al-Anfal", "The Spoils of War", 75},
	9:   {"At-Tawbah", "The Repentance", 129},
	10:  {"Yunus", "Jonah", 109},
	11:  {"Hud", "Hud", 123},
	12:  {"Yusuf", "Joseph", 111},
	13:  {"Ar-Ra'd", "The Thunder", 43},
	14:  {"Ibrahim", "Abraham", 52},
	15:  {"Al-Hijr", "The Rocky Tract", 99},
	16:  {"An-Nahl", "The Bee", 128},
	17:  {"Al-Isra", "The Night Journey", 111},
	18:  {"Al-Kahf", "The Cave", 110},
	19:  {"Maryam", "Mary", 98},
	20:  {"Ta-Ha", "Ta-Ha", 135},
	21:  {"Al-Anbiya", "The Prophets", 112},
	22:  {"Al-Hajj", "The Pilgrimage", 78},
	23:  {"Al-Mu'minun", "The Believers", 118},
	24:  {"An-Nur", "The Light", 64},
	25:  {"Al-Furqan", "The Criterion", 77},
	26:  {"Ash-Shu'ara", "The Poets", 227},
	27:  {"An-Naml", "The Ant", 93},
	28:  {"Al-Qasas", "The Stories", 88},
	29:  {"Al-'Ankabut", "The Spider", 69},
	30:  {"Ar-Rum", "The Romans", 60},
	31:  {"Luqman", "Luqman", 34},
	32:  {"As-Sajdah", "The Prostration", 30},
	33:  {"Al-Ahzab", "The Confederates", 73},
	34:  {"Saba", "Sheba", 54},
	35:  {"Fatir", "The Originator", 45},
	36:  {"Ya-Sin", "Ya-Sin", 83},
	37:  {"As-Saffat", "Those Ranged in Ranks", 182},
	38:  {"Sad", "Sad", 88},
	39:  {"Az-Zumar", "The Groups", 75},
	40:  {"Ghafir", "The Forgiver", 85},
	41:  {"Fussilat", "Explained in Detail", 54},
	42:  {"Ash-Shura", "The Consultation", 53},
	43:  {"Az-Zukhruf", "The Gold Adornments", 89},
	44:  {"Ad-Dukhan", "The Smoke", 59},
	45:  {"Al-Jathiyah", "The Kneeling", 37},
	46:  {"Al-Ahqaf", "The Wind-Curved Sandhills", 35},
	47:  {"Muhammad", "Muhammad", 38},
	48:  {"Al-Fath", "The Victory", 29},
	49:  {"Al-Hujurat", "The Rooms", 18},
	50:  {"Qaf", "Qaf", 45},
	51:  {"Adh-Dhariyat", "The Winnowing Winds", 60},
	52:  {"At-Tur", "The Mount", 49},
	53:  {"An-Najm", "The Star", 62},
	54:  {"Al-Qamar", "The Moon", 55},
	55:  {"Ar-Rahman", "The Most Merciful", 78},
	56:  {"Al-Waqi'ah", "The Inevitable", 96},
	57:  {"Al-Hadid", "The Iron", 29},
	58:  {"Al-Mujadila", "The Pleading Woman", 22},
	59:  {"Al-Hashr", "The Exile", 24},
	60:  {"Al-Mumtahanah", "She Who is Examined", 13},
	61:  {"As-Saff", "The Ranks", 14},
	62:  {"Al-Jumu'ah", "The Congregation", 11},
	63:  {"Al-Munafiqun", "The Hypocrites", 11},
	64:  {"At-Taghabun", "The Mutual Disillusion", 18},
	65:  {"At-Talaq", "The Divorce", 12},
	66:  {"At-Tahrim", "The Prohibition", 12},
	67:  {"Al-Mulk", "The Sovereignty", 30},
	68:  {"Al-Qalam", "The Pen", 52},
	69:  {"Al-Haqqah", "The Reality", 52},
	70:  {"Al-Ma'arij", "The Ascending Stairways", 44},
	71:  {"Nuh", "Noah", 28},
	72:  {"Al-Jinn", "The Jinn", 28},
	73:  {"Al-Muzzammil", "The Enshrouded One", 20},
	74:  {"Al-Muddaththir", "The Cloaked One", 56},
	75:  {"Al-Qiyamah", "The Resurrection", 40},
	76:  {"Al-Insan", "The Man", 31},
	77:  {"Al-Mursalat", "The Emissaries", 50},
	78:  {"An-Naba", "The Tidings", 40},
	79:  {"An-Nazi'at", "Those Who Drag Forth", 46},
	80:  {"'Abasa", "He Frowned", 42},
	81:  {"At-Takwir", "The Overthrowing", 29},
	82:  {"Al-Infitar", "The Cleaving", 19},
	83:  {"Al-Mutaffifin", "The Defrauding", 36},
	84:  {"Al-Inshiqaq", "The Sundering", 25},
	85:  {"Al-Buruj", "The Mansions of the Stars", 22},
	86:  {"At-Tariq", "The Nightcomer", 17},
	87:  {"Al-A'la", "The Most High", 19},
	88:  {"Al-Ghashiyah", "The Overwhelming", 26},
	89:  {"Al-Fajr", "The Dawn", 30},
	90:  {"Al-Balad", "The City", 20},
	91:  {"Ash-Shams", "The Sun", 15},
	92:  {"Al-Layl", "The Night", 21},
	93:  {"Ad-Duha", "The Morning Hours", 11},
	94:  {"Ash-Sharh", "The Relief", 8},
	95:  {"At-Tin", "The Fig", 8},
	96:  {"Al-'Alaq", "The Clot", 19},
	97:  {"Al-Qadr", "The Power", 5},
	98:  {"Al-Bayyinah", "The Clear Proof", 8},
	99:  {"Az-Zalzalah", "The Earthquake", 8},
	100: {"Al-'Adiyat", "The Courser", 11},
	101: {"Al-Qari'ah", "The Calamity", 11},
	102: {"At-Takathur", "The Rivalry in Increase", 8},
	103: {"Al-'Asr", "The Declining Day", 3},
	104: {"Al-Humazah", "The Traducer", 9},
	105: {"Al-Fil", "The Elephant", 5},
	106: {"Quraysh", "Quraysh", 4},
	107: {"Al-Ma'un", "The Small Kindnesses", 7},
	108: {"Al-Kawthar", "The Abundance", 3},
	109: {"Al-Kafirun", "The Disbelievers", 6},
	110: {"An-Nasr", "The Divine Support", 3},
	111: {"Al-Masad", "The Palm Fiber", 5},
	112: {"Al-Ikhlas", "The Sincerity", 4},
	113: {"Al-Falaq", "The Daybreak", 5},
	114: {"An-Nas", "Mankind", 6},
}

// fillMetadata fills the chapter's name, translated name and canonical verse
// count from the packaged table when the source did not provide them.
func fillMetadata(ch *Chapter) {
	meta, ok := chapterTable[ch.Number]
	if !ok {
		if ch.TotalVerseCount == 0 {
			ch.TotalVerseCount = len(ch.Verses)
		}
		return
	}
	if ch.Name == "" {
		ch.Name = meta.Name
	}
	if ch.TranslatedName == "" {
		ch.TranslatedName = meta.Translated
	}
	if ch.TotalVerseCount == 0 {
		ch.TotalVerseCount = meta.VerseCount
	}
}
