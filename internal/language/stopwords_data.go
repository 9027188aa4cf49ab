package language

// stopWordSource holds the bundled stop-word lists, whitespace separated.
var stopWordSource = map[string]string{
	"en": `
		a about above after again against all am an and any are aren't as at be
		because been before being below between both but by can can't cannot could
		couldn't did didn't do does doesn't doing don't down during each few for
		from further get got had hadn't has hasn't have haven't having he he'd he'll
		he's her here here's hers herself him himself his how how's i i'd i'll i'm
		i've if in into is isn't it it's its itself just let's me might more most
		mustn't my myself no nor not now of off on once only or other ought our ours
		ourselves out over own same shan't she she'd she'll she's should shouldn't
		so some such than that that's the their theirs them themselves then there
		there's these they they'd they'll they're they've this those through to too
		under until up us very was wasn't we we'd we'll we're we've were weren't
		what what's when when's where where's which while who who's whom why why's
		will with won't would wouldn't you you'd you'll you're you've your yours
		yourself yourselves
	`,
	"zh": `
		一 一个 上 不 与 为什么 也 了 人 什么 从 他 们 会 但 但是 你 再 到 去 又 只 可以 向 和 哪 因为 在 地 她 好 如何 如果 它
		对 将 就 已经 很 得 怎么 我 或 所以 把 是 有 正在 比 没有 的 看 着 给 而 能 自己 虽然 被 要 让 说 跟 过 还 这 这个 这些
		那 那个 那些 都
	`,
	"hi": `
		अपने अब आप इस इसके उस उसके एक और कर का कि की कुछ के को गई गया जब जा जो तक तो
		था थी थे दो नहीं ने पर बहुत भी में मैं यह या लिए वह वे साथ से हम है हैं हो
	`,
	"es": `
		a al algo algunas algunos ante antes como con contra cual cuando de del
		desde donde durante e el ella ellas ellos en entre era esa esas ese eso esos
		esta estaba estado estar estas este esto estos fue ha hasta hay la las le
		les lo los mas me mi muy más nada ni no nos nosotros nuestro o otra otras
		otro otros para pero por porque que quien se ser si sin sino sobre somos son
		soy su sus también te tengo ti tiene todo todos tu tus un una unas uno unos
		usted ustedes y ya yo
	`,
	"fr": `
		a ai au aux avec c ce ces dans de des du elle en est et eu fait il ils j je
		l la le les leur leurs lui m ma mais me mes mon même n ne ni nos notre nous
		on ont ou par pas plus pour qu que qui s sa se ses si son sont sur t ta te
		tes ton tu un une vos votre vous y à été
	`,
	"ar": `
		أن أنا أنت أو أي أيضا إذا إلى إن التي الذي بعد به بها بين ثم حتى ذلك على
		عليه عليها عن عند غير في فيه فيها قبل قد كان كل لا لكن لم ما مع من منه منها
		نحن هذا هذه هل هم هو هي و ولكن
	`,
	"bn": `
		আমরা আমি আর উপর এ এই একটি এবং ও করা করে কি কিন্তু তা তাদের তার থেকে দিয়ে না
		নিয়ে পরে বলে বা মধ্যে যা যে সে হতে হবে হয় হয়ে হলে
	`,
	"pt": `
		a ao aos aquela aquelas aquele aqueles aquilo as até com como da das de dela
		delas dele deles depois do dos e ela elas ele eles em entre era essa essas
		esse esses esta estas este estes eu foi fomos for foram há isso isto já lhe
		lhes mais mas me meu meus minha minhas muito na nas no nos nossa nossas
		nosso nossos num numa não nós o os ou para pela pelas pelo pelos por qual
		quando que quem se sem ser seu seus sua suas são só também te tem teu teus
		tu tua tuas tém um uma umas uns você vocês vos
	`,
	"ru": `
		а без более бы был была были было быть в вам вас весь во вот все всего всех
		вся всё вы где да даже для до его ее ей ему если есть ещё её же за здесь и
		из или им их к как ко когда кто ли либо мне может мой моя мы на над надо наш
		не нее нет ни них но ну о об однако он она они оно от очень по под при про
		раз с свой свою себе себя сейчас со та так такой там те тем то того тоже той
		только том тот ту ты у уж уже хоть чего чей чем что чтобы чье чья эта эти
		это этого этой этом этот я
	`,
	"ja": `
		あっ あり ある い いる う お おり か から が き こと この これ さ し しかし する ず せ その その他 それ た ため だ だっ つ
		て で でき できる と という として な ない なお なかっ なく なっ など なり なる に において における について によって により
		による の ので のみ は ば へ ほか ほとんど また まで も もの や よう より られ られる れ れる を
	`,
	"de": `
		aber alle allem allen aller allerdings alles als also am an andere anderem
		anderen anderer anderes auch auf aus bei beim bereits bin bis bist da dabei
		dadurch dafür dagegen daher dahin damals damit danach daneben dann daran
		darauf daraus darf darfst darin darum darunter darüber das davon davor dazu
		dein deine deinem deinen deiner dem den denn der des deshalb dessen die dies
		diese dieselbe dieselben diesem diesen dieser dieses doch dort durch dürfen
		ein eine einem einen einer einige einigem einigen einiger einiges einmal er
		es etwas euch euer eure eurem euren eurer für gegen gehen geht ging hab habe
		haben hat hatte hier hin hinter hätte ich ihm ihn ihnen ihr ihre ihrem ihren
		ihrer im in indem ins ist ja jede jedem jeden jeder jedes jedoch jene jenem
		jenen jener jenes kann kein keine keinem keinen keiner man manche manchem
		manchen mancher manchmal mein meine meinem meinen meiner mir mit nach
		nachdem nachher nein nicht nichts noch nun nur ob oder ohne sein seine
		seinem seinen seiner seit seitdem sich sie sind so sogar solch solche
		solchem solchen solcher soll sollen sollte sollten sondern sonst um und uns
		unser unsere unserem unseren unserer unter viel viele vielem vielen
		vielleicht vom von vor war warum was weder weil weit welch welche welchem
		welchen welcher wenig wenige wenn wer werde werden wie wieder will wir wird
		wo wollen worden während würde würden zu zum zur zwar zwischen über
	`,
	"ko": `
		가 같은 것 과 그 그런 그리고 까지 는 더 도 되다 들 등 때문 또는 또한 로 를 보다 수 아니 없다 에 에서 와 으로 은 의 이 이다
		이런 있는 있다 저 저런 하고 하는 하다 하지 한
	`,
	"tr": `
		altında ama ancak arasında ben bile bir biz bu da daha de değil en gibi hem
		her ile ise için kadar mi mu mü mı ne o olan olarak onlar sadece sen siz
		sonra var ve ya yok çok önce üzerinde
	`,
	"vi": `
		bằng bị cho các còn có cũng của do hay hoặc hơn khi không là lên mà một
		nhiều như nhưng những nào này nếu ra rất theo trong trên tại từ và vào vì về
		với đã đó được đến để
	`,
	"it": `
		a abbiamo ad ai al alla alle allo anche ancora avere avete aveva che chi ci
		come con contro cui da dai dal dall dalla dalle dallo degli dei del dell
		della delle dello di dopo dove e ed era erano eravamo eravate fa facciamo
		fai fanno fare fatto fu gli ha hai hanno ho i il in io l la le lei li lo
		loro lui ma me mi mia mie miei mio molto ne nei nel nell nella nelle nello
		no noi non nostra nostre nostri nostro o ogni per perché più poco poi prima
		quale quanta quante quanti quanto quasi quel quella quelle quelli quello
		questa queste questi questo qui sa se sei si sia siamo siete sono sotto sua
		sue sui sul sull sulla sulle sullo suo suoi ti tra tu tua tue tuo tuoi tutti
		tutto un una uno vi voi vostra vostre vostri vostro è
	`,
}
