package classify

// Uncategorized is the label used when nothing matches or a category is suppressed.
const Uncategorized = "其他"

// Opinion is matched like any other category but never surfaced.
const Opinion = "评论观察"

// Category maps a label to the literal keywords that vote for it.
type Category struct {
	Name     string
	Keywords []string
}

// Table is an ordered list of categories. Order is the tie-break priority.
type Table struct {
	Categories    []Category
	Suppressed    string
	Authoritative []string
}

// Labels returns every label the table can produce, including Uncategorized.
// The suppressed category is never produced and is left out.
func (t Table) Labels() []string {
	labels := make([]string, 0, len(t.Categories)+1)
	for _, cat := range t.Categories {
		if cat.Name == t.Suppressed {
			continue
		}
		labels = append(labels, cat.Name)
	}
	return append(labels, Uncategorized)
}

// Allowed reports whether label is a category of the table or Uncategorized.
func (t Table) Allowed(label string) bool {
	if label == Uncategorized {
		return true
	}
	for _, cat := range t.Categories {
		if cat.Name == label {
			return true
		}
	}
	return false
}

// DefaultTable is the production keyword table.
var DefaultTable = Table{
	Suppressed:    Opinion,
	Authoritative: []string{"cctv", "people"},
	Categories: []Category{
		{Name: "财经", Keywords: []string{"A股", "股票", "股市", "指数", "上证", "深证", "创业板", "港股", "美股", "货币", "利率", "汇率", "通胀", "通缩", "降息", "加息", "央行", "存款", "贷款", "财政", "赤字", "税收", "发债", "城投", "券商", "基金", "期货", "大宗", "原油", "金价", "铜", "煤", "钢", "地产", "房企", "收购", "并购", "IPO", "上市", "退市", "年报", "季报", "利润", "营收", "净利", "亏损", "增收", "降本", "供给侧", "金融", "交易所", "上交所", "深交所", "港交所", "监管", "并表"}},
		{Name: "社会", Keywords: []string{"社会", "案件", "警方", "警情", "法院", "判决", "纠纷", "治安", "校园", "舆论", "网传", "网络暴力", "打人", "斗殴", "交通事故", "地震", "灾情", "火灾", "坍塌", "走失", "寻人", "救援", "通报"}},
		{Name: "民生", Keywords: []string{"医保", "社保", "养老金", "就业", "失业", "薪资", "住房", "公积金", "保障房", "教育", "学位", "招生", "中考", "高考", "消费券", "电价", "水价", "气价", "供暖", "菜价", "米面油", "米价", "蔬菜", "猪肉"}},
		{Name: "国际", Keywords: []string{"联合国", "美方", "欧盟", "俄罗斯", "乌克兰", "中东", "以色列", "巴勒斯坦", "朝鲜", "韩国", "日本", "英国", "法国", "德国", "印度", "东南亚", "北约", "G7", "G20", "APEC", "上合", "金砖", "外交", "制裁", "关税"}},
		{Name: "政务公告", Keywords: []string{"国务院", "部委", "住建部", "发改委", "财政部", "统计局", "证监会", "应急管理部", "公告", "公示", "通知", "通告", "倡议", "意见", "征求意见", "实施方案", "方案", "条例", "规定", "发布会", "权威发布"}},
		{Name: "应急安全", Keywords: []string{"台风", "暴雨", "暴雪", "高温", "寒潮", "地震", "泥石流", "山体滑坡", "疫情", "感染", "疾控", "防疫", "流感", "航班延误", "临时管控", "危化", "矿难", "爆炸", "险情", "预警", "Ⅰ级响应", "Ⅱ级响应", "Ⅲ级响应", "Ⅳ级响应"}},
		{Name: "科技", Keywords: []string{"芯片", "半导体", "AI", "人工智能", "算法", "大模型", "生成式", "光刻", "EDA", "研发", "专利", "科技", "科研", "卫星", "火箭", "载人", "航天", "量子", "5G", "6G", "云计算", "算力", "数据中心", "电动车", "新能源", "电池"}},
		{Name: "文体", Keywords: []string{"文娱", "明星", "演唱会", "综艺", "影视", "票房", "体育", "足球", "篮球", "奥运", "亚运", "世界杯", "夺冠", "联赛", "CBA", "NBA", "中超", "娱乐"}},
		{Name: Opinion, Keywords: []string{"评论", "观察", "述评", "盘点", "展望", "社论", "特稿", "点评", "风向", "社评", "观点"}},
	},
}
