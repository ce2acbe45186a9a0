package sqlinline

const QPromptConfigByCategory = `--sql 2389a0ff-fcaa-44f6-8e97-7edb340e4b27
select category, system_prompt, standard_prompts, dynamic_prompts, image_urls
from prompt_configs
where category = $1::text
limit 1;
`

const QPromptConfigAppendDynamic = `--sql b26d2e8c-0c75-4e62-b177-60ce90bd6073
update prompt_configs
set dynamic_prompts = dynamic_prompts || $2::text[],
    updated_at = now()
where category = $1::text;
`

const QModelConfigByVersion = `--sql 2854a464-b8cc-4bae-a46d-a8c8a5e6cb02
select model_version, resolution, aspect_ratio, active
from model_configs
where model_version = $1::text
limit 1;
`

const QModelConfigActiveDefault = `--sql 230052b3-b8e0-4737-aa0b-11fb671d004c
select model_version, resolution, aspect_ratio, active
from model_configs
where active
order by updated_at desc
limit 1;
`
