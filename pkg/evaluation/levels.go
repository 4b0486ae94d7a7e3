package evaluation

import (
	"fmt"
	"strconv"
)

// LevelDefinition is one row of a geographic granularity dictionary. The
// row's position in its list defines the 1-based levelIndex.
type LevelDefinition struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Alias       string `json:"alias" yaml:"alias"`
	Pos         string `json:"pos" yaml:"pos"`
	Example     string `json:"example" yaml:"example"`
	Description string `json:"description" yaml:"description"`
}

var default18Level = []LevelDefinition{
	{ID: "L1", Name: "国家 (Country)", Alias: "国", Pos: "ns", Example: "中国", Description: "主权国家名称"},
	{ID: "L2", Name: "省/直辖市 (Province)", Alias: "省", Pos: "ns", Example: "广东省", Description: "一级行政区"},
	{ID: "L3", Name: "城市 (City)", Alias: "市", Pos: "ns", Example: "深圳市", Description: "地级行政单位"},
	{ID: "L4", Name: "区县 (District)", Alias: "区", Pos: "ns", Example: "南山区", Description: "县级行政单位"},
	{ID: "L5", Name: "乡镇街道 (Township)", Alias: "镇", Pos: "ns", Example: "粤海街道", Description: "乡级行政单位"},
	{ID: "L6", Name: "路/街 (Road)", Alias: "路", Pos: "n", Example: "深南大道", Description: "城市道路名称"},
	{ID: "L7", Name: "门牌号 (Number)", Alias: "号", Pos: "m", Example: "100号", Description: "道路门牌"},
	{ID: "L8", Name: "建筑物 (Building)", Alias: "栋", Pos: "n", Example: "腾讯大厦", Description: "独立建筑物名称"},
	{ID: "L9", Name: "楼栋 (Block)", Alias: "幢", Pos: "m", Example: "A座", Description: "建筑物内部区块"},
	{ID: "L10", Name: "单元 (Unit)", Alias: "单元", Pos: "m", Example: "2单元", Description: "楼栋单元号"},
	{ID: "L11", Name: "层 (Floor)", Alias: "层", Pos: "m", Example: "18层", Description: "楼层高度"},
	{ID: "L12", Name: "户/房号 (Room)", Alias: "室", Pos: "m", Example: "1801室", Description: "最小房间编号"},
	{ID: "L13", Name: "方位词 (Direction)", Alias: "位", Pos: "f", Example: "旁边", Description: "相对地理方位"},
	{ID: "L14", Name: "距离 (Distance)", Alias: "距", Pos: "m", Example: "200米", Description: "距离描述"},
	{ID: "L15", Name: "兴趣点 (POI)", Alias: "POI", Pos: "n", Example: "世界之窗", Description: "地标、商铺等点状地名"},
	{ID: "L16", Name: "附属设施 (Facility)", Alias: "施", Pos: "n", Example: "停车场", Description: "建筑物附属设施"},
	{ID: "L17", Name: "交叉路口 (Intersection)", Alias: "叉", Pos: "n", Example: "路口", Description: "两条路交汇处"},
	{ID: "L18", Name: "区域描述 (Area)", Alias: "域", Pos: "n", Example: "核心区", Description: "非标准行政划定的区域"},
}

var extra24Level = []LevelDefinition{
	{ID: "L19", Name: "商圈 (Business District)", Alias: "圈", Pos: "n", Example: "东门商圈", Description: "商业聚集区域"},
	{ID: "L20", Name: "社区 (Community)", Alias: "社", Pos: "n", Example: "南园社区", Description: "基层群众性自治组织区域"},
	{ID: "L21", Name: "地标 (Landmark)", Alias: "标", Pos: "n", Example: "东方明珠", Description: "具有标志性的地理实体"},
	{ID: "L22", Name: "POI分类 (POI Category)", Alias: "类", Pos: "n", Example: "酒店", Description: "POI的类别标签"},
	{ID: "L23", Name: "子区域 (Sub-area)", Alias: "子", Pos: "n", Example: "北区", Description: "大区域内部的子划分"},
	{ID: "L24", Name: "邮编 (Postcode)", Alias: "邮", Pos: "m", Example: "518000", Description: "邮政编码数字"},
}

var defaultCustom = []LevelDefinition{
	{ID: "C1", Name: "地理核心区", Alias: "核心", Pos: "n", Example: "中心枢纽", Description: "自定义核心区域"},
}

// DefaultDefinitions returns fresh copies of the built-in dictionaries.
func DefaultDefinitions() map[GranularityLevel][]LevelDefinition {
	l24 := make([]LevelDefinition, 0, len(default18Level)+len(extra24Level))
	l24 = append(l24, default18Level...)
	l24 = append(l24, extra24Level...)

	return map[GranularityLevel][]LevelDefinition{
		Granularity18Level: append([]LevelDefinition(nil), default18Level...),
		Granularity24Level: l24,
		GranularityCustom:  append([]LevelDefinition(nil), defaultCustom...),
	}
}

// AddLevel returns a copy of c with a placeholder row appended to the
// active dictionary.
func (c AIConfig) AddLevel() AIConfig {
	current := c.ActiveDefinitions()
	next := make([]LevelDefinition, 0, len(current)+1)
	next = append(next, current...)
	next = append(next, LevelDefinition{
		ID:          "L" + strconv.Itoa(len(current)+1),
		Name:        "新层级名称",
		Alias:       "别名",
		Pos:         "n",
		Example:     "示例",
		Description: "说明文字",
	})
	return c.WithDefinitions(c.GranularityLevel, next)
}

// UpdateLevel returns a copy of c with row i of the active dictionary
// replaced by def.
func (c AIConfig) UpdateLevel(i int, def LevelDefinition) (AIConfig, error) {
	current := c.ActiveDefinitions()
	if i < 0 || i >= len(current) {
		return c, newError(ErrConfiguration, "update level", fmt.Errorf("index %d out of range [0,%d)", i, len(current)))
	}
	next := append([]LevelDefinition(nil), current...)
	next[i] = def
	return c.WithDefinitions(c.GranularityLevel, next), nil
}

// RemoveLevel returns a copy of c without row i of the active dictionary.
func (c AIConfig) RemoveLevel(i int) (AIConfig, error) {
	current := c.ActiveDefinitions()
	if i < 0 || i >= len(current) {
		return c, newError(ErrConfiguration, "remove level", fmt.Errorf("index %d out of range [0,%d)", i, len(current)))
	}
	next := make([]LevelDefinition, 0, len(current)-1)
	next = append(next, current[:i]...)
	next = append(next, current[i+1:]...)
	return c.WithDefinitions(c.GranularityLevel, next), nil
}
